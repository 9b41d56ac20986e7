package merge

import (
	"strings"

	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// checkDeclarations fails when a key both inputs declare carries two
// different types.
func checkDeclarations(a, b *vcf.Header) error {
	for _, db := range b.InfoDeclarations() {
		if da, ok := a.Info(db.ID); ok && da.Type != db.Type {
			return &InfoTypeError{Kind: "INFO", ID: db.ID, TypeA: da.Type, TypeB: db.Type}
		}
	}
	for _, db := range b.FormatDeclarations() {
		if da, ok := a.Format(db.ID); ok && da.Type != db.Type {
			return &InfoTypeError{Kind: "FORMAT", ID: db.ID, TypeA: da.Type, TypeB: db.Type}
		}
	}
	return nil
}

// combineHeaders starts from a copy of a and adds b's declarations that a
// lacks, so every INFO key either input can emit is declared.
func combineHeaders(a, b *vcf.Header) *vcf.Header {
	h := a.Clone()
	for _, d := range b.InfoDeclarations() {
		dd := *d
		h.AddInfo(&dd)
	}
	for _, d := range b.FormatDeclarations() {
		dd := *d
		h.AddFormat(&dd)
	}
	return h
}

// datasets lists the provenance of one input: its ##FILE entries, or the
// input's own name when it has none.
func datasets(h *vcf.Header, name string) []string {
	if len(h.Files) == 0 {
		return []string{name}
	}
	out := make([]string, len(h.Files))
	for i, f := range h.Files {
		out[i] = f.Name
	}
	return out
}

// provenance concatenates the dataset lists of both inputs and renumbers
// them from 1.
func provenance(a *vcf.Header, nameA string, b *vcf.Header, nameB string) []vcf.Dataset {
	names := append(datasets(a, nameA), datasets(b, nameB)...)
	out := make([]vcf.Dataset, len(names))
	for i, n := range names {
		out[i] = vcf.Dataset{ID: i + 1, Name: n}
	}
	return out
}

// collision resolves two entries at the same position to the records that
// are written.
type collision struct {
	cfg    Config
	countA int // datasets behind input A
	countB int
}

func (c collision) resolve(a, b store.Entry) []*vcf.Record {
	switch c.cfg.Priority {
	case PriorityFile:
		if c.cfg.PriorityFile == 2 {
			return b.Origins()
		}
		return a.Origins()
	case PriorityMerge:
		oa, ob := a.Origins(), b.Origins()
		n := max(len(oa), len(ob))
		out := make([]*vcf.Record, 0, n)
		for i := 0; i < n; i++ {
			var ra, rb *vcf.Record
			if i < len(oa) {
				ra = oa[i]
			}
			if i < len(ob) {
				rb = ob[i]
			}
			out = append(out, mergeRecords(ra, rb, c.countA, c.countB))
		}
		return out
	}
	if bestQual(b) > bestQual(a) {
		return b.Origins()
	}
	return a.Origins()
}

// padA lays out a line only input A holds the way a merged line is laid
// out, with every dataset of B missing.
func (c collision) padA(r *vcf.Record) *vcf.Record {
	return mergeRecords(r, nil, c.countA, c.countB)
}

// padB is padA for a line only input B holds.
func (c collision) padB(r *vcf.Record) *vcf.Record {
	return mergeRecords(nil, r, c.countA, c.countB)
}

func bestQual(e store.Entry) float64 {
	best := 0.0
	for _, r := range e.Records {
		best = max(best, r.Qual)
	}
	return best
}

// mergeRecords builds one line from a colliding pair. Fixed columns come
// from a (or b when a is missing). Each INFO key carries a's value and b's
// value joined by "/", with "." standing in for every dataset of the side
// that lacks the key. Flags stay flags.
func mergeRecords(a, b *vcf.Record, countA, countB int) *vcf.Record {
	base := a
	if base == nil {
		base = b
	}
	out := base.Clone()
	out.Parent = nil
	out.Normalized = false
	if a != nil && b != nil {
		if out.ID == "" || out.ID == "." {
			out.ID = b.ID
		}
		if b.Qual > out.Qual {
			out.SetQual(b.Qual)
		}
	}

	var infoA, infoB *vcf.Info
	if a != nil {
		infoA = a.Info
	}
	if b != nil {
		infoB = b.Info
	}
	keys := infoA.Keys()
	for _, k := range infoB.Keys() {
		if !infoA.Has(k) {
			keys = append(keys, k)
		}
	}

	info := vcf.NewInfo()
	for _, k := range keys {
		if infoA.IsFlag(k) || infoB.IsFlag(k) {
			info.SetFlag(k)
			continue
		}
		info.Set(k, sideValue(infoA, k, countA)+"/"+sideValue(infoB, k, countB))
	}
	out.Info = info
	return out
}

func sideValue(in *vcf.Info, key string, count int) string {
	if v, ok := in.Get(key); ok {
		return v
	}
	return strings.TrimSuffix(strings.Repeat("./", max(count, 1)), "/")
}
