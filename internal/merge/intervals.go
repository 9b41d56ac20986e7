package merge

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/bed"
	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// intervalJoin is the behaviour of one operation over a variant stream and
// an interval stream.
type intervalJoin struct {
	// keepOutside writes variants no interval covers.
	keepOutside bool
	// inside returns the records written for a variant entry inside iv.
	inside func(e store.Entry, iv *bed.Interval) []*vcf.Record
}

// IntersectBED writes the variants of a that fall inside an interval of b.
func (e *Engine) IntersectBED(a VariantInput, b IntervalInput, w Writer) (Summary, error) {
	j := intervalJoin{
		inside: func(en store.Entry, _ *bed.Interval) []*vcf.Record { return en.Origins() },
	}
	return e.runIntervals(OpIntersect, a, b, w, a.Header().Clone(), j)
}

// UniqueBED writes the variants of a that fall outside every interval of b.
func (e *Engine) UniqueBED(a VariantInput, b IntervalInput, w Writer) (Summary, error) {
	j := intervalJoin{
		keepOutside: true,
		inside:      func(store.Entry, *bed.Interval) []*vcf.Record { return nil },
	}
	return e.runIntervals(OpUnique, a, b, w, a.Header().Clone(), j)
}

// infoEscaper percent-encodes the characters that would break an INFO
// value, as VCF 4.3 does for String values.
var infoEscaper = strings.NewReplacer(
	"%", "%25",
	"\t", "%09",
	" ", "%20",
	";", "%3B",
	"=", "%3D",
	",", "%2C",
)

// AnnotateBED writes every variant of a. Variants inside an interval of b
// carry the interval's annotation tokens under the configured INFO key,
// comma-joined; intervals without annotation set the key as a flag.
func (e *Engine) AnnotateBED(a VariantInput, b IntervalInput, w Writer) (Summary, error) {
	key := e.cfg.AnnotationKey
	h := a.Header().Clone()
	h.AddInfo(&vcf.Declaration{
		ID:          key,
		Number:      ".",
		Type:        "String",
		Description: fmt.Sprintf("Annotation of the overlapping intervals of %s", b.Name()),
	})
	j := intervalJoin{
		keepOutside: true,
		inside: func(en store.Entry, iv *bed.Interval) []*vcf.Record {
			recs := en.Origins()
			tokens := iv.Tokens()
			for i, tok := range tokens {
				tokens[i] = infoEscaper.Replace(tok)
			}
			for _, r := range recs {
				if len(tokens) == 0 {
					r.Info.SetFlag(key)
				} else {
					r.Info.Set(key, strings.Join(tokens, ","))
				}
			}
			return recs
		},
	}
	return e.runIntervals(OpAnnotate, a, b, w, h, j)
}

func (e *Engine) runIntervals(op Operation, a VariantInput, b IntervalInput, w Writer, h *vcf.Header, j intervalJoin) (Summary, error) {
	sum := Summary{Operation: op}
	if err := w.WriteHeader(h); err != nil {
		return sum, fmt.Errorf("write header: %w", err)
	}

	e.logger.Info("starting operation",
		zap.Stringer("operation", op),
		zap.String("a", a.Name()),
		zap.String("b", b.Name()),
		zap.Bool("merge_annotations", e.cfg.MergeAnnotations),
		zap.Int("window", e.cfg.Window))

	out := &countingWriter{w: w}
	sa := e.newVariantStore(a)
	sb := store.NewIntervalStore(b, b.Name(), e.cfg.Window, e.cfg.MergeAnnotations)
	sb.SetLogger(e.logger)
	order := NewChromOrder(a.Header())
	err := e.joinIntervals(sa, sb, order, j, out)

	sum.Written = out.n
	sum.DroppedA = sa.Dropped()
	if err != nil {
		return sum, err
	}
	e.finish(&sum, sa.Visited(), sb.Visited())
	return sum, nil
}

func (e *Engine) joinIntervals(a *store.VariantStore, b *store.IntervalStore, order *ChromOrder, j intervalJoin, out vcf.RecordWriter) error {
	aOK, err := a.Anchor()
	if err != nil {
		return err
	}
	bOK, err := b.Build()
	if err != nil {
		return err
	}

	moved := movedNeither
	for {
		switch stateOf(aOK, bOK) {
		case joinDone:
			return nil
		case aExhausted:
			return discardIntervals(b)
		case bExhausted:
			return drainAll(a, out, j.keepOutside)
		}

		if a.Chrom() != b.Chrom() {
			x := Cursor{Chrom: a.Chrom(), Visited: a.Visited(), Advanced: moved == movedA}
			y := Cursor{Chrom: b.Chrom(), Visited: b.Visited(), Advanced: moved == movedB}
			if order.Behind(x, y) {
				if err := a.DrainRemaining(out, j.keepOutside); err != nil {
					return err
				}
				if aOK, err = a.Anchor(); err != nil {
					return err
				}
				moved = movedA
			} else {
				if err := b.DrainRemaining(); err != nil {
					return err
				}
				if bOK, err = b.Build(); err != nil {
					return err
				}
				moved = movedB
			}
			continue
		}

		fa, okA, err := a.Front()
		if err != nil {
			return err
		}
		iv, okB, err := b.Front()
		if err != nil {
			return err
		}
		if !okA || !okB {
			if err := a.DrainRemaining(out, j.keepOutside); err != nil {
				return err
			}
			if err := b.DrainRemaining(); err != nil {
				return err
			}
			// B stays on the finished sequence until the mismatch branch
			// moves it, so the two streams advance one at a time.
			if aOK, err = a.Anchor(); err != nil {
				return err
			}
			moved = movedA
			continue
		}

		switch {
		case fa.Pos > iv.End:
			if _, _, err := b.Pop(); err != nil {
				return err
			}
		case fa.Pos < iv.Start:
			if _, _, err := a.PopFront(); err != nil {
				return err
			}
			if j.keepOutside {
				if err := writeAll(out, fa.Origins()); err != nil {
					return err
				}
			}
		default:
			if _, _, err := a.PopFront(); err != nil {
				return err
			}
			if err := writeAll(out, j.inside(fa, iv)); err != nil {
				return err
			}
		}
	}
}

func discardIntervals(s *store.IntervalStore) error {
	for {
		if err := s.DrainRemaining(); err != nil {
			return err
		}
		ok, err := s.Build()
		if err != nil || !ok {
			return err
		}
	}
}
