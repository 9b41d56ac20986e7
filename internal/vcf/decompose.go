package vcf

import "strings"

// Decompose splits a multi-allelic record into one record per alternate
// allele, each classified on its own. Two or three single-base alternates
// against a single-base reference stay together as one multi-allelic SNP.
// Records with a single alternate are classified and returned as is.
func Decompose(r *Record) []*Record {
	if !strings.Contains(r.Alt, ",") {
		r.Class = Classify(r.Ref, r.Alt)
		return []*Record{r}
	}

	alts := r.Alts()
	if isMultiSNP(r.Ref, alts) {
		r.Class = ClassMultiallelicSNP
		return []*Record{r}
	}

	records := make([]*Record, len(alts))
	for i, alt := range alts {
		sub := *r
		sub.Alt = alt
		sub.Class = Classify(r.Ref, alt)
		sub.Parent = r
		records[i] = &sub
	}
	return records
}

func isMultiSNP(ref string, alts []string) bool {
	if len(ref) != 1 || len(alts) < 2 || len(alts) > 3 {
		return false
	}
	for _, alt := range alts {
		if Classify(ref, alt) != ClassSNP {
			return false
		}
	}
	return true
}
