// Package vcf provides VCF record parsing, decomposition and serialization.
package vcf

import (
	"strconv"
	"strings"
)

// Record represents a single line of a VCF file, or one allele of a
// decomposed multi-allelic line.
type Record struct {
	Chrom  string  // Chromosome name (e.g., "12", "chr12")
	Pos    int64   // 1-based genomic position
	ID     string  // Variant identifier (e.g., rs ID)
	Ref    string  // Reference allele
	Alt    string  // Alternate allele(s), comma-joined on undecomposed lines
	Qual   float64 // Quality score, 0 when missing
	Filter string  // Filter status (PASS or filter name)
	Info   *Info   // INFO field key-value pairs

	// Class is set by Decompose.
	Class VariantClass
	// Parent is the undecomposed line this record was split from.
	Parent *Record
	// Normalized is set when an aligner rewrote Pos, Ref or Alt.
	Normalized bool
	// Line is the raw text the record was parsed from.
	Line string

	qual    string // QUAL text as read
	samples string // FORMAT + genotype columns, split on demand
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (r *Record) IsSNV() bool {
	return len(r.Ref) == 1 && len(r.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (r *Record) IsIndel() bool {
	return len(r.Ref) != len(r.Alt)
}

// Alts returns the individual alternate alleles.
func (r *Record) Alts() []string {
	return strings.Split(r.Alt, ",")
}

// Origin returns the line a record came from: its parent when it is an
// unmodified decomposed allele, otherwise the record itself.
func (r *Record) Origin() *Record {
	if r.Parent != nil && !r.Normalized {
		return r.Parent
	}
	return r
}

// SampleColumns returns the raw FORMAT and genotype columns, tab-joined.
func (r *Record) SampleColumns() string {
	return r.samples
}

// SetSampleColumns replaces the raw FORMAT and genotype columns.
func (r *Record) SetSampleColumns(cols string) {
	r.samples = cols
}

// Format returns the FORMAT column, or "" when the line has none.
func (r *Record) Format() string {
	format, _, _ := strings.Cut(r.samples, "\t")
	return format
}

// Genotypes splits the per-sample columns. The split is deferred until a
// caller asks, since most operations never look at genotypes.
func (r *Record) Genotypes() []string {
	_, rest, ok := strings.Cut(r.samples, "\t")
	if !ok {
		return nil
	}
	return strings.Split(rest, "\t")
}

// QualString returns the QUAL column text.
func (r *Record) QualString() string {
	if r.qual != "" {
		return r.qual
	}
	if r.Qual == 0 {
		return "."
	}
	return strconv.FormatFloat(r.Qual, 'g', -1, 64)
}

// SetQual replaces the quality score.
func (r *Record) SetQual(q float64) {
	r.Qual = q
	r.qual = ""
}

// Clone returns a copy with its own INFO column. Parent and the raw line
// are shared.
func (r *Record) Clone() *Record {
	c := *r
	c.Info = r.Info.Clone()
	return &c
}

// String serializes the record as a tab-delimited VCF data line.
func (r *Record) String() string {
	var b strings.Builder
	b.Grow(len(r.Line) + 16)

	b.WriteString(r.Chrom)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatInt(r.Pos, 10))
	b.WriteByte('\t')
	b.WriteString(orDot(r.ID))
	b.WriteByte('\t')
	b.WriteString(r.Ref)
	b.WriteByte('\t')
	b.WriteString(r.Alt)
	b.WriteByte('\t')
	b.WriteString(r.QualString())
	b.WriteByte('\t')
	b.WriteString(orDot(r.Filter))
	b.WriteByte('\t')
	b.WriteString(r.Info.String())
	if r.samples != "" {
		b.WriteByte('\t')
		b.WriteString(r.samples)
	}
	return b.String()
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
