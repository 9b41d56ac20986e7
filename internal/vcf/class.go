package vcf

// VariantClass describes the shape of a single REF/ALT pair.
type VariantClass int

const (
	ClassUnknown VariantClass = iota // symbolic or missing alternate
	ClassSNP
	ClassMultiallelicSNP
	ClassMNP
	ClassInsertion
	ClassDeletion
)

func (c VariantClass) String() string {
	switch c {
	case ClassSNP:
		return "SNP"
	case ClassMultiallelicSNP:
		return "multiallelic SNP"
	case ClassMNP:
		return "MNP"
	case ClassInsertion:
		return "insertion"
	case ClassDeletion:
		return "deletion"
	}
	return "unknown"
}

// IsIndel reports whether the class changes the allele length.
func (c VariantClass) IsIndel() bool {
	return c == ClassInsertion || c == ClassDeletion
}

// Classify returns the class of a single reference/alternate pair.
func Classify(ref, alt string) VariantClass {
	if ref == "" || alt == "" || isSymbolic(alt) {
		return ClassUnknown
	}
	switch {
	case len(ref) == len(alt) && len(ref) == 1:
		return ClassSNP
	case len(ref) == len(alt):
		return ClassMNP
	case len(alt) > len(ref):
		return ClassInsertion
	default:
		return ClassDeletion
	}
}

func isSymbolic(alt string) bool {
	return alt == "." || alt == "*" || alt[0] == '<' || alt[len(alt)-1] == '>'
}

// ClassSet selects which variant classes a run processes.
type ClassSet struct {
	SNPs   bool
	MNPs   bool
	Indels bool
}

// AllClasses selects every class, including unclassifiable records.
var AllClasses = ClassSet{SNPs: true, MNPs: true, Indels: true}

// All reports whether no class is filtered out.
func (s ClassSet) All() bool {
	return s.SNPs && s.MNPs && s.Indels
}

// Allows reports whether records of class c are admitted.
func (s ClassSet) Allows(c VariantClass) bool {
	switch c {
	case ClassSNP, ClassMultiallelicSNP:
		return s.SNPs
	case ClassMNP:
		return s.MNPs
	case ClassInsertion, ClassDeletion:
		return s.Indels
	}
	return s.All()
}
