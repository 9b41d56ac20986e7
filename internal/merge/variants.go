package merge

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// variantJoin is the behaviour of one operation over two variant streams.
type variantJoin struct {
	// keepA and keepB write entries that only one stream holds, both at a
	// lagging position and when a stream is drained.
	keepA bool
	keepB bool
	// loneA and loneB, when set, rewrite each kept line that only one
	// stream holds.
	loneA func(*vcf.Record) *vcf.Record
	loneB func(*vcf.Record) *vcf.Record
	// collide returns the records written for two entries at the same
	// position.
	collide func(a, b store.Entry) ([]*vcf.Record, error)
}

// Intersect writes the records present in both inputs. Colliding records
// are resolved by the configured priority.
func (e *Engine) Intersect(a, b VariantInput, w Writer) (Summary, error) {
	return e.resolveVariants(OpIntersect, a, b, w, false, false)
}

// Union writes every record of either input. Colliding records are
// resolved by the configured priority.
func (e *Engine) Union(a, b VariantInput, w Writer) (Summary, error) {
	return e.resolveVariants(OpUnion, a, b, w, true, true)
}

// Unique writes the records of a that have no counterpart in b.
func (e *Engine) Unique(a, b VariantInput, w Writer) (Summary, error) {
	j := variantJoin{
		keepA:   true,
		collide: func(store.Entry, store.Entry) ([]*vcf.Record, error) { return nil, nil },
	}
	return e.runVariants(OpUnique, a, b, w, a.Header().Clone(), j)
}

func (e *Engine) resolveVariants(op Operation, a, b VariantInput, w Writer, keepA, keepB bool) (Summary, error) {
	ha, hb := a.Header(), b.Header()
	if !slices.Equal(ha.Samples, hb.Samples) {
		return Summary{Operation: op}, fmt.Errorf("%w: %s has %v, %s has %v",
			ErrSampleMismatch, a.Name(), ha.Samples, b.Name(), hb.Samples)
	}

	h := combineHeaders(ha, hb)
	c := collision{cfg: e.cfg, countA: ha.DatasetCount(), countB: hb.DatasetCount()}
	if e.cfg.Priority == PriorityMerge {
		if err := checkDeclarations(ha, hb); err != nil {
			return Summary{Operation: op}, err
		}
		h.Files = provenance(ha, a.Name(), hb, b.Name())
	}

	j := variantJoin{
		keepA: keepA,
		keepB: keepB,
		collide: func(ea, eb store.Entry) ([]*vcf.Record, error) {
			return c.resolve(ea, eb), nil
		},
	}
	if e.cfg.Priority == PriorityMerge {
		j.loneA, j.loneB = c.padA, c.padB
	}
	return e.runVariants(op, a, b, w, h, j)
}

func (e *Engine) runVariants(op Operation, a, b VariantInput, w Writer, h *vcf.Header, j variantJoin) (Summary, error) {
	sum := Summary{Operation: op}
	if err := w.WriteHeader(h); err != nil {
		return sum, fmt.Errorf("write header: %w", err)
	}

	e.logger.Info("starting operation",
		zap.Stringer("operation", op),
		zap.String("a", a.Name()),
		zap.String("b", b.Name()),
		zap.Stringer("priority", e.cfg.Priority),
		zap.Int("window", e.cfg.Window))

	out := &countingWriter{w: w}
	sa, sb := e.newVariantStore(a), e.newVariantStore(b)
	order := NewChromOrder(a.Header(), b.Header())
	err := e.joinVariants(sa, sb, order, j, out)

	sum.Written = out.n
	sum.DroppedA, sum.DroppedB = sa.Dropped(), sb.Dropped()
	if err != nil {
		return sum, err
	}
	e.finish(&sum, sa.Visited(), sb.Visited())
	return sum, nil
}

func (e *Engine) joinVariants(a, b *store.VariantStore, order *ChromOrder, j variantJoin, out vcf.RecordWriter) error {
	aOK, err := a.Anchor()
	if err != nil {
		return err
	}
	bOK, err := b.Anchor()
	if err != nil {
		return err
	}

	moved := movedNeither
	for {
		switch stateOf(aOK, bOK) {
		case joinDone:
			return nil
		case aExhausted:
			return drainAll(b, j.sinkB(out), j.keepB)
		case bExhausted:
			return drainAll(a, j.sinkA(out), j.keepA)
		}

		if a.Chrom() != b.Chrom() {
			x := Cursor{Chrom: a.Chrom(), Visited: a.Visited(), Advanced: moved == movedA}
			y := Cursor{Chrom: b.Chrom(), Visited: b.Visited(), Advanced: moved == movedB}
			if order.Behind(x, y) {
				e.logger.Debug("draining lagging reference sequence",
					zap.String("source", a.Name()), zap.String("chrom", a.Chrom()))
				if err := a.DrainRemaining(j.sinkA(out), j.keepA); err != nil {
					return err
				}
				if aOK, err = a.Anchor(); err != nil {
					return err
				}
				moved = movedA
			} else {
				e.logger.Debug("draining lagging reference sequence",
					zap.String("source", b.Name()), zap.String("chrom", b.Chrom()))
				if err := b.DrainRemaining(j.sinkB(out), j.keepB); err != nil {
					return err
				}
				if bOK, err = b.Anchor(); err != nil {
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
		fb, okB, err := b.Front()
		if err != nil {
			return err
		}
		if !okA || !okB {
			// One side finished this reference sequence.
			if err := a.DrainRemaining(j.sinkA(out), j.keepA); err != nil {
				return err
			}
			if err := b.DrainRemaining(j.sinkB(out), j.keepB); err != nil {
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

		c, err := comparePositions(fa, fb)
		if err != nil {
			return err
		}
		if c <= 0 {
			if _, _, err := a.PopFront(); err != nil {
				return err
			}
		}
		if c >= 0 {
			if _, _, err := b.PopFront(); err != nil {
				return err
			}
		}
		switch {
		case c < 0:
			if j.keepA {
				err = writeAll(j.sinkA(out), fa.Origins())
			}
		case c > 0:
			if j.keepB {
				err = writeAll(j.sinkB(out), fb.Origins())
			}
		default:
			err = e.collide(fa, fb, j, out)
		}
		if err != nil {
			return err
		}
	}
}

// collide handles two entries at one position. With allele matching the
// entries are first split into the lines that agree on an allele and the
// rest, which behave as if they stood alone.
func (e *Engine) collide(a, b store.Entry, j variantJoin, out vcf.RecordWriter) error {
	restA, restB := store.Entry{}, store.Entry{}
	if e.cfg.MatchAlleles {
		a, b, restA, restB = splitByAlleles(a, b)
	}
	if len(a.Records) > 0 && len(b.Records) > 0 {
		recs, err := j.collide(a, b)
		if err != nil {
			return err
		}
		if err := writeAll(out, recs); err != nil {
			return err
		}
	} else {
		restA.Records = append(restA.Records, a.Records...)
		restB.Records = append(restB.Records, b.Records...)
	}
	if j.keepA && len(restA.Records) > 0 {
		if err := writeAll(j.sinkA(out), restA.Origins()); err != nil {
			return err
		}
	}
	if j.keepB && len(restB.Records) > 0 {
		if err := writeAll(j.sinkB(out), restB.Origins()); err != nil {
			return err
		}
	}
	return nil
}

func (j variantJoin) sinkA(out vcf.RecordWriter) vcf.RecordWriter {
	return rewriting(out, j.loneA)
}

func (j variantJoin) sinkB(out vcf.RecordWriter) vcf.RecordWriter {
	return rewriting(out, j.loneB)
}

// rewriteWriter passes every record through fn before writing it.
type rewriteWriter struct {
	w  vcf.RecordWriter
	fn func(*vcf.Record) *vcf.Record
}

func rewriting(w vcf.RecordWriter, fn func(*vcf.Record) *vcf.Record) vcf.RecordWriter {
	if fn == nil {
		return w
	}
	return rewriteWriter{w: w, fn: fn}
}

func (rw rewriteWriter) WriteRecord(r *vcf.Record) error {
	return rw.w.WriteRecord(rw.fn(r))
}

func alleleKey(r *vcf.Record) string {
	return r.Ref + ">" + r.Alt
}

// splitByAlleles partitions both entries into lines with an allele the
// other side shares and lines without. A line matches as a whole when any
// of its alleles does.
func splitByAlleles(a, b store.Entry) (matchA, matchB, restA, restB store.Entry) {
	keysA := make(map[string]bool, len(a.Records))
	for _, r := range a.Records {
		keysA[alleleKey(r)] = true
	}
	keysB := make(map[string]bool, len(b.Records))
	for _, r := range b.Records {
		keysB[alleleKey(r)] = true
	}
	matchA, restA = partition(a, keysB)
	matchB, restB = partition(b, keysA)
	return matchA, matchB, restA, restB
}

func partition(e store.Entry, keys map[string]bool) (match, rest store.Entry) {
	hit := make(map[*vcf.Record]bool)
	for _, r := range e.Records {
		if keys[alleleKey(r)] {
			hit[r.Origin()] = true
		}
	}
	match.Pos, rest.Pos = e.Pos, e.Pos
	for _, r := range e.Records {
		if hit[r.Origin()] {
			match.Records = append(match.Records, r)
		} else {
			rest.Records = append(rest.Records, r)
		}
	}
	return match, rest
}

// drainAll writes or discards everything left in s, across reference
// sequences.
func drainAll(s *store.VariantStore, out vcf.RecordWriter, write bool) error {
	for {
		if err := s.DrainRemaining(out, write); err != nil {
			return err
		}
		ok, err := s.Anchor()
		if err != nil || !ok {
			return err
		}
	}
}
