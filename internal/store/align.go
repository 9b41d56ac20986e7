package store

// Aligner normalizes the alleles of an indel. It may move the position.
type Aligner interface {
	Align(chrom string, pos int64, ref, alt string) (int64, string, string, error)
}

// TrimAligner removes bases shared by both alleles, first from the end and
// then from the start, always keeping at least one base per allele.
// Trimming the start moves the position right.
type TrimAligner struct{}

// Align implements Aligner.
func (TrimAligner) Align(chrom string, pos int64, ref, alt string) (int64, string, string, error) {
	for len(ref) > 1 && len(alt) > 1 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref, alt = ref[:len(ref)-1], alt[:len(alt)-1]
	}
	for len(ref) > 1 && len(alt) > 1 && ref[0] == alt[0] {
		ref, alt = ref[1:], alt[1:]
		pos++
	}
	return pos, ref, alt, nil
}
