package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFileFormat is written when an input carried no ##fileformat line.
const DefaultFileFormat = "##fileformat=VCFv4.2"

// TitlePrefix starts the mandatory column title line.
const TitlePrefix = "#CHROM"

var titleColumns = []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Declaration is a parsed ##INFO or ##FORMAT line.
type Declaration struct {
	ID          string
	Number      string
	Type        string
	Description string
	extra       string // trailing attributes (Source=, Version=) kept verbatim
}

// String renders the declaration body without the ##INFO= prefix.
func (d *Declaration) String() string {
	var b strings.Builder
	b.WriteString("<ID=")
	b.WriteString(d.ID)
	b.WriteString(",Number=")
	b.WriteString(d.Number)
	b.WriteString(",Type=")
	b.WriteString(d.Type)
	b.WriteString(",Description=")
	b.WriteString(strconv.Quote(d.Description))
	if d.extra != "" {
		b.WriteByte(',')
		b.WriteString(d.extra)
	}
	b.WriteByte('>')
	return b.String()
}

// Dataset is one entry of the provenance list written as ##FILE lines.
type Dataset struct {
	ID   int
	Name string
}

// Header holds the header of a VCF stream. INFO and FORMAT declarations and
// ##FILE provenance are kept structured; every other meta line is preserved
// verbatim in input order.
type Header struct {
	Meta     []string
	Contigs  []string
	Files    []Dataset
	Samples  []string
	HasTitle bool

	info       []*Declaration
	format     []*Declaration
	infoByID   map[string]*Declaration
	formatByID map[string]*Declaration
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{
		infoByID:   make(map[string]*Declaration),
		formatByID: make(map[string]*Declaration),
	}
}

// Info returns the INFO declaration for id.
func (h *Header) Info(id string) (*Declaration, bool) {
	d, ok := h.infoByID[id]
	return d, ok
}

// Format returns the FORMAT declaration for id.
func (h *Header) Format(id string) (*Declaration, bool) {
	d, ok := h.formatByID[id]
	return d, ok
}

// InfoDeclarations returns INFO declarations in header order.
func (h *Header) InfoDeclarations() []*Declaration {
	return h.info
}

// FormatDeclarations returns FORMAT declarations in header order.
func (h *Header) FormatDeclarations() []*Declaration {
	return h.format
}

// AddInfo declares an INFO key. An existing declaration with the same ID
// is left untouched and false is returned.
func (h *Header) AddInfo(d *Declaration) bool {
	if _, ok := h.infoByID[d.ID]; ok {
		return false
	}
	h.info = append(h.info, d)
	h.infoByID[d.ID] = d
	return true
}

// AddFormat declares a FORMAT key.
func (h *Header) AddFormat(d *Declaration) bool {
	if _, ok := h.formatByID[d.ID]; ok {
		return false
	}
	h.format = append(h.format, d)
	h.formatByID[d.ID] = d
	return true
}

// DatasetCount returns how many source datasets this stream represents:
// the number of ##FILE entries, or 1 for a plain file.
func (h *Header) DatasetCount() int {
	if len(h.Files) == 0 {
		return 1
	}
	return len(h.Files)
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	c := NewHeader()
	c.Meta = append(c.Meta, h.Meta...)
	c.Contigs = append(c.Contigs, h.Contigs...)
	c.Files = append(c.Files, h.Files...)
	c.Samples = append(c.Samples, h.Samples...)
	c.HasTitle = h.HasTitle
	for _, d := range h.info {
		dd := *d
		c.AddInfo(&dd)
	}
	for _, d := range h.format {
		dd := *d
		c.AddFormat(&dd)
	}
	return c
}

// AddLine parses one ## meta line into the header.
func (h *Header) AddLine(line string) error {
	switch {
	case strings.HasPrefix(line, "##INFO="):
		d, err := parseDeclaration(strings.TrimPrefix(line, "##INFO="))
		if err != nil {
			return fmt.Errorf("INFO declaration %q: %w", line, err)
		}
		h.AddInfo(d)
	case strings.HasPrefix(line, "##FORMAT="):
		d, err := parseDeclaration(strings.TrimPrefix(line, "##FORMAT="))
		if err != nil {
			return fmt.Errorf("FORMAT declaration %q: %w", line, err)
		}
		h.AddFormat(d)
	case strings.HasPrefix(line, "##FILE="):
		ds, err := parseDataset(strings.TrimPrefix(line, "##FILE="))
		if err != nil {
			return fmt.Errorf("FILE line %q: %w", line, err)
		}
		h.Files = append(h.Files, ds)
	case strings.HasPrefix(line, "##contig="):
		attrs, err := splitAttributes(strings.TrimPrefix(line, "##contig="))
		if err != nil {
			return fmt.Errorf("contig line %q: %w", line, err)
		}
		for _, a := range attrs {
			if k, v, _ := strings.Cut(a, "="); k == "ID" {
				h.Contigs = append(h.Contigs, v)
			}
		}
		h.Meta = append(h.Meta, line)
	default:
		h.Meta = append(h.Meta, line)
	}
	return nil
}

// SetTitle parses the #CHROM title line. Sample names follow the FORMAT
// column when the line has more than eight columns.
func (h *Header) SetTitle(line string) {
	h.HasTitle = true
	fields := strings.Split(line, "\t")
	if len(fields) > 9 {
		h.Samples = append([]string(nil), fields[9:]...)
	} else {
		h.Samples = nil
	}
}

// Title renders the #CHROM line.
func (h *Header) Title() string {
	cols := titleColumns
	if len(h.Samples) > 0 {
		cols = append(append(append([]string(nil), titleColumns...), "FORMAT"), h.Samples...)
	}
	return strings.Join(cols, "\t")
}

// Lines renders the full header, ending with the title line.
func (h *Header) Lines() []string {
	var lines []string
	hasFormat := len(h.Meta) > 0 && strings.HasPrefix(h.Meta[0], "##fileformat=")
	if !hasFormat {
		lines = append(lines, DefaultFileFormat)
	}
	lines = append(lines, h.Meta...)
	for _, d := range h.info {
		lines = append(lines, "##INFO="+d.String())
	}
	for _, d := range h.format {
		lines = append(lines, "##FORMAT="+d.String())
	}
	for _, f := range h.Files {
		lines = append(lines, fmt.Sprintf("##FILE=<ID=%d,%s>", f.ID, strconv.Quote(f.Name)))
	}
	lines = append(lines, h.Title())
	return lines
}

func parseDeclaration(body string) (*Declaration, error) {
	attrs, err := splitAttributes(body)
	if err != nil {
		return nil, err
	}
	d := &Declaration{}
	var extra []string
	for _, a := range attrs {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q has no value", a)
		}
		switch k {
		case "ID":
			d.ID = v
		case "Number":
			d.Number = v
		case "Type":
			d.Type = v
		case "Description":
			d.Description = unquote(v)
		default:
			extra = append(extra, a)
		}
	}
	if d.ID == "" || d.Number == "" || d.Type == "" {
		return nil, fmt.Errorf("missing ID, Number or Type")
	}
	d.extra = strings.Join(extra, ",")
	return d, nil
}

// parseDataset reads <ID=n,"filename">.
func parseDataset(body string) (Dataset, error) {
	attrs, err := splitAttributes(body)
	if err != nil {
		return Dataset{}, err
	}
	if len(attrs) != 2 || !strings.HasPrefix(attrs[0], "ID=") {
		return Dataset{}, fmt.Errorf("expected <ID=n,\"filename\">")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(attrs[0], "ID="))
	if err != nil || id < 1 {
		return Dataset{}, fmt.Errorf("invalid dataset id %q", attrs[0])
	}
	return Dataset{ID: id, Name: unquote(attrs[1])}, nil
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"`)
}

// splitAttributes splits the body of a <...> structured header value on
// commas that are not inside double quotes.
func splitAttributes(body string) ([]string, error) {
	if !strings.HasPrefix(body, "<") || !strings.HasSuffix(body, ">") {
		return nil, fmt.Errorf("expected <...>")
	}
	body = body[1 : len(body)-1]

	var attrs []string
	inQuote := false
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				attrs = append(attrs, body[start:i])
				start = i + 1
			}
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	return append(attrs, body[start:]), nil
}
