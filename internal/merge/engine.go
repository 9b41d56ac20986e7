// Package merge joins two coordinate-sorted streams into one, applying
// intersect, union, unique or annotate semantics.
package merge

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// VariantInput is an open VCF stream.
type VariantInput interface {
	vcf.RecordSource
	Header() *vcf.Header
	Name() string
}

// IntervalInput is an open BED stream.
type IntervalInput interface {
	store.IntervalSource
	Name() string
}

// Writer receives the output header once, then every output record.
type Writer interface {
	WriteHeader(h *vcf.Header) error
	vcf.RecordWriter
}

// Summary describes a finished run.
type Summary struct {
	Operation Operation
	Written   int
	// DroppedA and DroppedB count decomposed records the class filter
	// rejected on each variant input.
	DroppedA int
	DroppedB int
	// ChromMismatch is set when the inputs did not cover the same
	// reference sequences.
	ChromMismatch bool
}

// Engine runs set operations under one configuration.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger for progress and warning messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

type countingWriter struct {
	w vcf.RecordWriter
	n int
}

func (c *countingWriter) WriteRecord(r *vcf.Record) error {
	c.n++
	return c.w.WriteRecord(r)
}

func writeAll(w vcf.RecordWriter, recs []*vcf.Record) error {
	for _, r := range recs {
		if err := w.WriteRecord(r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) newVariantStore(in VariantInput) *store.VariantStore {
	s := store.NewVariantStore(in, in.Name(), e.cfg.storeOptions())
	s.SetLogger(e.logger)
	return s
}

// finish records the end-of-run checks shared by every operation.
func (e *Engine) finish(sum *Summary, visitedA, visitedB []string) {
	if !slices.Equal(visitedA, visitedB) {
		sum.ChromMismatch = true
		e.logger.Warn("inputs cover different reference sequences",
			zap.Strings("a", visitedA),
			zap.Strings("b", visitedB))
	}
	e.logger.Info("operation complete",
		zap.Stringer("operation", sum.Operation),
		zap.Int("written", sum.Written),
		zap.Int("dropped_a", sum.DroppedA),
		zap.Int("dropped_b", sum.DroppedB))
}

// joinState is the coarse state of a two-stream join.
type joinState int

const (
	bothActive joinState = iota
	aExhausted
	bExhausted
	joinDone
)

func stateOf(aOK, bOK bool) joinState {
	switch {
	case aOK && bOK:
		return bothActive
	case bOK:
		return aExhausted
	case aOK:
		return bExhausted
	}
	return joinDone
}

// mover names the stream that moved to a new reference sequence last.
type mover int

const (
	movedNeither mover = iota
	movedA
	movedB
)

// comparePositions orders two front entries. Entries on different
// reference sequences are never comparable; the join loops only compare
// fronts once both streams sit on one sequence.
func comparePositions(a, b store.Entry) (int, error) {
	if a.Records[0].Chrom != b.Records[0].Chrom {
		return 0, fmt.Errorf("%w: comparing %s:%d with %s:%d", ErrStreamDesync,
			a.Records[0].Chrom, a.Pos, b.Records[0].Chrom, b.Pos)
	}
	switch {
	case a.Pos < b.Pos:
		return -1, nil
	case a.Pos > b.Pos:
		return 1, nil
	}
	return 0, nil
}
