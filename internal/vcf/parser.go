package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brentp/xopen"
)

// minColumns is the number of mandatory columns; INFO may be absent.
const minColumns = 7

// Reader reads records from a VCF stream one at a time.
type Reader struct {
	reader     *bufio.Reader
	closer     io.Closer
	name       string
	lineNumber int
	header     *Header

	next    *Record // peeked record
	pending string  // first data line seen while reading the header
	err     error
	eof     bool
}

// Open opens a VCF file for reading. Gzipped input is detected
// transparently and "-" reads stdin.
func Open(path string) (*Reader, error) {
	rdr, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file %s: %w", path, err)
	}
	r, err := newReader(rdr.Reader, path)
	if err != nil {
		rdr.Close()
		return nil, err
	}
	r.closer = rdr
	return r, nil
}

// NewReader creates a reader over r. Name identifies the stream in
// dataset provenance and diagnostics.
func NewReader(r io.Reader, name string) (*Reader, error) {
	return newReader(bufio.NewReader(r), name)
}

func newReader(br *bufio.Reader, name string) (*Reader, error) {
	r := &Reader{reader: br, name: name, header: NewHeader()}
	if err := r.parseHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// parseHeader reads ## lines and the #CHROM title. A file with no header
// at all is accepted; once any ## line has been seen the title is required.
func (r *Reader) parseHeader() error {
	sawMeta := false
	for {
		line, err := r.readLine()
		if err == io.EOF {
			if sawMeta {
				return &HeaderError{Line: r.lineNumber, Message: "no #CHROM header line found"}
			}
			r.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "##") {
			sawMeta = true
			if err := r.header.AddLine(line); err != nil {
				return &HeaderError{Line: r.lineNumber, Message: err.Error()}
			}
			continue
		}

		if strings.HasPrefix(line, TitlePrefix) {
			r.header.SetTitle(line)
			return nil
		}

		if sawMeta {
			// Non-header line encountered without #CHROM
			return &HeaderError{Line: r.lineNumber, Message: "expected #CHROM header line"}
		}
		r.pending = line
		return nil
	}
}

func (r *Reader) readLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	r.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// Header returns the parsed header.
func (r *Reader) Header() *Header {
	return r.header
}

// Name returns the path the reader was opened with.
func (r *Reader) Name() string {
	return r.name
}

// LineNumber returns the current line number being processed.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Peek returns the next record without consuming it.
// Returns nil, nil when there are no more records.
func (r *Reader) Peek() (*Record, error) {
	if r.next == nil && r.err == nil && !r.eof {
		r.next, r.err = r.read()
	}
	return r.next, r.err
}

// Next reads the next record from the VCF stream.
// Returns nil, nil when there are no more records.
func (r *Reader) Next() (*Record, error) {
	rec, err := r.Peek()
	r.next = nil
	return rec, err
}

func (r *Reader) read() (*Record, error) {
	if r.pending != "" {
		line := r.pending
		r.pending = ""
		return r.parseLine(line)
	}
	for {
		line, err := r.readLine()
		if err == io.EOF {
			r.eof = true
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" || line[0] == '#' {
			continue
		}
		return r.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Record. FORMAT and
// genotype columns are kept as one unsplit string.
func (r *Reader) parseLine(line string) (*Record, error) {
	fields := strings.SplitN(line, "\t", 9)
	if len(fields) < minColumns {
		return nil, r.parseError(line, fmt.Sprintf("expected at least %d columns, found %d", minColumns, len(fields)))
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, r.parseError(line, fmt.Sprintf("invalid position: %s", fields[1]))
	}
	if fields[3] == "" || fields[4] == "" {
		return nil, r.parseError(line, "empty reference or alternate allele")
	}

	qual := 0.0
	if fields[5] != "." {
		qual, err = strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, r.parseError(line, fmt.Sprintf("invalid quality: %s", fields[5]))
		}
	}

	rec := &Record{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
		Line:   line,
		qual:   fields[5],
	}
	if len(fields) > 7 {
		rec.Info = ParseInfo(fields[7])
	} else {
		rec.Info = NewInfo()
	}

	// Capture FORMAT + sample columns if present
	if len(fields) > 8 {
		rec.samples = fields[8]
	}
	return rec, nil
}

func (r *Reader) parseError(line, msg string) error {
	return &ParseError{Line: r.lineNumber, Message: msg, Text: line}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
