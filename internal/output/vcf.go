// Package output writes merged records as VCF text and buffers them back
// into coordinate order when needed.
package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/brentp/xopen"

	"github.com/inodb/vcf-setops/internal/vcf"
)

// Sink receives a header followed by records.
type Sink interface {
	WriteHeader(h *vcf.Header) error
	WriteRecord(r *vcf.Record) error
}

// VCFWriter writes a header and records as VCF text.
type VCFWriter struct {
	w       *bufio.Writer
	closer  io.Closer
	header  bool
	written int
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer) *VCFWriter {
	return &VCFWriter{w: bufio.NewWriter(w)}
}

// CreateVCF opens path for writing. "-" is standard output and a .gz
// suffix selects gzip compression.
func CreateVCF(path string) (*VCFWriter, error) {
	f, err := xopen.Wopen(path)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}
	vw := NewVCFWriter(f)
	vw.closer = f
	return vw, nil
}

// WriteHeader writes every header line, ending with the #CHROM line.
func (vw *VCFWriter) WriteHeader(h *vcf.Header) error {
	if vw.header {
		return fmt.Errorf("header already written")
	}
	vw.header = true
	for _, line := range h.Lines() {
		if _, err := vw.w.WriteString(line); err != nil {
			return err
		}
		if err := vw.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecord writes one data line.
func (vw *VCFWriter) WriteRecord(r *vcf.Record) error {
	if _, err := vw.w.WriteString(r.String()); err != nil {
		return err
	}
	vw.written++
	return vw.w.WriteByte('\n')
}

// Written returns the number of data lines written.
func (vw *VCFWriter) Written() int {
	return vw.written
}

// Flush writes buffered output to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

// Close flushes and, for writers from CreateVCF, closes the file.
func (vw *VCFWriter) Close() error {
	if err := vw.Flush(); err != nil {
		return err
	}
	if vw.closer != nil {
		return vw.closer.Close()
	}
	return nil
}
