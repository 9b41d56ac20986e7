package merge

import (
	"fmt"
	"strings"

	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// AnnotateMode selects what a variant annotation source contributes.
type AnnotateMode int

const (
	// AnnotateDBSNP copies identifiers and sets the DB membership flag.
	AnnotateDBSNP AnnotateMode = iota
	// AnnotateVCF copies INFO keys the annotated record lacks.
	AnnotateVCF
)

func (m AnnotateMode) String() string {
	switch m {
	case AnnotateDBSNP:
		return "dbsnp"
	case AnnotateVCF:
		return "vcf"
	}
	return fmt.Sprintf("AnnotateMode(%d)", int(m))
}

// DBKey is the INFO flag marking dbSNP membership.
const DBKey = "DB"

// AnnotateVariants writes every record of a, annotated from the records of
// b at the same position.
func (e *Engine) AnnotateVariants(a, b VariantInput, mode AnnotateMode, w Writer) (Summary, error) {
	h := a.Header().Clone()
	var annotate func(r *vcf.Record, src []*vcf.Record)
	switch mode {
	case AnnotateDBSNP:
		h.AddInfo(&vcf.Declaration{ID: DBKey, Number: "0", Type: "Flag", Description: "dbSNP membership"})
		annotate = annotateID
	case AnnotateVCF:
		for _, d := range b.Header().InfoDeclarations() {
			dd := *d
			h.AddInfo(&dd)
		}
		annotate = copyInfo
	default:
		return Summary{Operation: OpAnnotate}, fmt.Errorf("unknown annotation mode %v", mode)
	}

	j := variantJoin{
		keepA: true,
		collide: func(ea, eb store.Entry) ([]*vcf.Record, error) {
			src := eb.Origins()
			recs := ea.Origins()
			for _, r := range recs {
				annotate(r, src)
			}
			return recs, nil
		},
	}
	return e.runVariants(OpAnnotate, a, b, w, h, j)
}

// annotateID fills or extends the ID column with the source identifiers
// and flags the record as known.
func annotateID(r *vcf.Record, src []*vcf.Record) {
	ids := splitIDs(r.ID)
	for _, s := range src {
		for _, id := range splitIDs(s.ID) {
			if !contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) > 0 {
		r.ID = strings.Join(ids, ";")
	}
	if r.Info == nil {
		r.Info = vcf.NewInfo()
	}
	r.Info.SetFlag(DBKey)
}

func splitIDs(id string) []string {
	if id == "" || id == "." {
		return nil
	}
	return strings.Split(id, ";")
}

// copyInfo adds the source INFO keys the record does not already carry.
// Earlier sources win.
func copyInfo(r *vcf.Record, src []*vcf.Record) {
	if r.Info == nil {
		r.Info = vcf.NewInfo()
	}
	for _, s := range src {
		for _, k := range s.Info.Keys() {
			if r.Info.Has(k) {
				continue
			}
			if s.Info.IsFlag(k) {
				r.Info.SetFlag(k)
			} else {
				v, _ := s.Info.Get(k)
				r.Info.Set(k, v)
			}
		}
	}
}
