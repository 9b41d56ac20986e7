package store

import (
	"cmp"
	"fmt"

	"github.com/biogo/store/llrb"
	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/bed"
)

// IntervalSource is the pull interface the interval store reads from.
type IntervalSource interface {
	Peek() (*bed.Interval, error)
	Next() (*bed.Interval, error)
}

// span orders intervals by start, then end, then arrival so that
// identical intervals can coexist until they are resolved.
type span struct {
	iv  *bed.Interval
	seq uint64
}

func (s *span) Compare(b llrb.Comparable) int {
	o := b.(*span)
	if c := cmp.Compare(s.iv.Start, o.iv.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(s.iv.End, o.iv.End); c != 0 {
		return c
	}
	return cmp.Compare(s.seq, o.seq)
}

// IntervalStore is a windowed buffer of BED intervals for one reference
// sequence. After every operation the buffered intervals are pairwise
// disjoint and sorted.
type IntervalStore struct {
	src    IntervalSource
	name   string
	window int
	merge  bool
	logger *zap.Logger

	tree      llrb.Tree
	seq       uint64
	chrom     string
	lastStart int64
	visited   []string
	done      bool
}

// NewIntervalStore creates a store reading from src. Window caps how many
// intervals a refill admits (zero or less is unbounded); merge selects
// annotation merging for overlapping intervals.
func NewIntervalStore(src IntervalSource, name string, window int, merge bool) *IntervalStore {
	return &IntervalStore{
		src:    src,
		name:   name,
		window: window,
		merge:  merge,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (s *IntervalStore) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Name returns the stream label.
func (s *IntervalStore) Name() string {
	return s.name
}

// Chrom returns the reference sequence the window is anchored on.
func (s *IntervalStore) Chrom() string {
	return s.chrom
}

// Visited returns the reference sequences anchored so far, in order.
func (s *IntervalStore) Visited() []string {
	return s.visited
}

// Exhausted reports whether the input has been fully consumed.
func (s *IntervalStore) Exhausted() bool {
	return s.done
}

// Len returns the number of buffered intervals.
func (s *IntervalStore) Len() int {
	return s.tree.Len()
}

// Intervals returns the buffered intervals in order.
func (s *IntervalStore) Intervals() []*bed.Interval {
	out := make([]*bed.Interval, 0, s.tree.Len())
	s.tree.Do(func(c llrb.Comparable) bool {
		out = append(out, c.(*span).iv)
		return false
	})
	return out
}

// Build anchors the store on the reference sequence of the next unread
// interval and fills the window from scratch. It returns false once the
// input is exhausted.
func (s *IntervalStore) Build() (bool, error) {
	if s.tree.Len() > 0 {
		return false, fmt.Errorf("%s: rebuild with %d intervals still buffered on %s", s.name, s.tree.Len(), s.chrom)
	}
	next, err := s.src.Peek()
	if err != nil {
		return false, err
	}
	if next == nil {
		s.done = true
		s.chrom = ""
		return false, nil
	}
	for _, c := range s.visited {
		if c == next.Chrom {
			return false, &OrderError{Source: s.name, Chrom: next.Chrom, Pos: next.Start,
				Message: "reference sequence appears in more than one block"}
		}
	}

	s.chrom = next.Chrom
	s.lastStart = 0
	s.visited = append(s.visited, s.chrom)
	s.logger.Debug("anchored interval window", zap.String("source", s.name), zap.String("chrom", s.chrom))

	_, err = s.Refill()
	return true, err
}

// Refill admits intervals until the window holds its limit or the reader
// leaves the anchored reference sequence, then resolves overlaps. It
// reports whether more intervals remain on this reference sequence.
func (s *IntervalStore) Refill() (bool, error) {
	more := false
	for {
		next, err := s.src.Peek()
		if err != nil {
			return false, err
		}
		if next == nil || next.Chrom != s.chrom {
			break
		}
		if s.window > 0 && s.tree.Len() >= s.window {
			more = true
			break
		}
		if err := s.admitNext(); err != nil {
			return false, err
		}
	}
	return more, s.resolve()
}

func (s *IntervalStore) admitNext() error {
	iv, err := s.src.Next()
	if err != nil {
		return err
	}
	if iv.Start < s.lastStart {
		return &OrderError{Source: s.name, Chrom: iv.Chrom, Pos: iv.Start,
			Message: fmt.Sprintf("start follows %d", s.lastStart)}
	}
	s.lastStart = iv.Start
	s.seq++
	s.tree.Insert(&span{iv: iv, seq: s.seq})
	return nil
}

// resolve restores the disjointness invariant by replacing every chained
// run of overlapping intervals with its resolved partition.
func (s *IntervalStore) resolve() error {
	var (
		all    = s.Intervals()
		runs   [][]*bed.Interval
		run    []*bed.Interval
		runEnd int64
	)
	for _, iv := range all {
		if len(run) > 0 && iv.Start <= runEnd {
			run = append(run, iv)
			runEnd = max(runEnd, iv.End)
			continue
		}
		if len(run) > 1 {
			runs = append(runs, run)
		}
		run = []*bed.Interval{iv}
		runEnd = iv.End
	}
	if len(run) > 1 {
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return nil
	}

	// Rebuild the tree; the run members are replaced by their partition.
	replaced := make(map[*bed.Interval]bool)
	var added []*bed.Interval
	for _, r := range runs {
		parts, err := Resolve(r, s.merge)
		if err != nil {
			return err
		}
		for _, iv := range r {
			replaced[iv] = true
		}
		added = append(added, parts...)
	}
	s.logger.Debug("resolved overlapping intervals",
		zap.String("chrom", s.chrom), zap.Int("runs", len(runs)), zap.Int("intervals", len(added)))

	var tree llrb.Tree
	for _, iv := range all {
		if !replaced[iv] {
			s.seq++
			tree.Insert(&span{iv: iv, seq: s.seq})
		}
	}
	for _, iv := range added {
		s.seq++
		tree.Insert(&span{iv: iv, seq: s.seq})
	}
	s.tree = tree
	return nil
}

// Front returns the first interval without removing it. Unread intervals
// that start inside it are admitted and resolved first, so the returned
// interval is final. It returns false when the anchored reference sequence
// has no more intervals.
func (s *IntervalStore) Front() (*bed.Interval, bool, error) {
	for {
		if s.tree.Len() == 0 {
			if _, err := s.Refill(); err != nil {
				return nil, false, err
			}
			if s.tree.Len() == 0 {
				return nil, false, nil
			}
		}
		front := s.tree.Min().(*span).iv

		next, err := s.src.Peek()
		if err != nil {
			return nil, false, err
		}
		if next == nil || next.Chrom != s.chrom || next.Start > front.End {
			return front, true, nil
		}
		if err := s.admitNext(); err != nil {
			return nil, false, err
		}
		if err := s.resolve(); err != nil {
			return nil, false, err
		}
	}
}

// Pop removes and returns the first interval.
func (s *IntervalStore) Pop() (*bed.Interval, bool, error) {
	iv, ok, err := s.Front()
	if !ok || err != nil {
		return iv, ok, err
	}
	s.tree.DeleteMin()
	return iv, true, nil
}

// DrainRemaining discards every interval left on the anchored reference
// sequence.
func (s *IntervalStore) DrainRemaining() error {
	for {
		_, ok, err := s.Pop()
		if err != nil || !ok {
			return err
		}
	}
}
