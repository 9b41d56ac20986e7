package bed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brentp/xopen"

	"github.com/inodb/vcf-setops/internal/vcf"
)

// ParseError represents an error during BED parsing with line context.
type ParseError struct {
	Line    int
	Message string
	Text    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bed parse error at line %d: %s\n\t%s", e.Line, e.Message, e.Text)
}

func (e *ParseError) Unwrap() error { return vcf.ErrMalformedRecord }

// Reader reads intervals from a BED stream. Lines starting with '#',
// "track" or "browser" are skipped.
type Reader struct {
	reader     *bufio.Reader
	closer     io.Closer
	name       string
	lineNumber int

	next *Interval
	err  error
	eof  bool
}

// Open opens a BED file; gzip and "-" for stdin are handled transparently.
func Open(path string) (*Reader, error) {
	rdr, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open bed file %s: %w", path, err)
	}
	return &Reader{reader: rdr.Reader, closer: rdr, name: path}, nil
}

// NewReader creates a reader over r.
func NewReader(r io.Reader, name string) *Reader {
	return &Reader{reader: bufio.NewReader(r), name: name}
}

// Name returns the path the reader was opened with.
func (r *Reader) Name() string {
	return r.name
}

// LineNumber returns the current line number being processed.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Peek returns the next interval without consuming it.
// Returns nil, nil at end of input.
func (r *Reader) Peek() (*Interval, error) {
	if r.next == nil && r.err == nil && !r.eof {
		r.next, r.err = r.read()
	}
	return r.next, r.err
}

// Next consumes and returns the next interval.
// Returns nil, nil at end of input.
func (r *Reader) Next() (*Interval, error) {
	iv, err := r.Peek()
	r.next = nil
	return iv, err
}

func (r *Reader) read() (*Interval, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				r.eof = true
				return nil, nil
			}
			return nil, fmt.Errorf("read bed line: %w", err)
		}
		r.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		return r.parseLine(line)
	}
}

// parseLine converts the 0-based start to 1-based; the exclusive 0-based
// end is already the inclusive 1-based end. Only the name column is kept;
// score, strand and later BED columns are ignored.
func (r *Reader) parseLine(line string) (*Interval, error) {
	fields := strings.SplitN(line, "\t", 5)
	if len(fields) < 3 {
		return nil, r.parseError(line, fmt.Sprintf("expected at least 3 columns, found %d", len(fields)))
	}

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, r.parseError(line, fmt.Sprintf("invalid start: %s", fields[1]))
	}
	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, r.parseError(line, fmt.Sprintf("invalid end: %s", fields[2]))
	}

	iv := &Interval{Chrom: fields[0], Start: start + 1, End: end}
	if iv.End < iv.Start {
		return nil, r.parseError(line, fmt.Sprintf("end %d precedes start %d", end, start))
	}
	if len(fields) > 3 {
		iv.Info = fields[3]
	}
	return iv, nil
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
