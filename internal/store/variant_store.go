// Package store buffers sorted record streams in bounded, position-ordered
// windows covering one reference sequence at a time.
package store

import (
	"cmp"
	"fmt"

	"github.com/biogo/store/llrb"
	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/vcf"
)

// DefaultWindow is the number of records a store buffers per refill.
const DefaultWindow = 1000

// Options configures a VariantStore.
type Options struct {
	// Window caps how many records a refill admits. Zero or less means
	// the whole reference sequence is buffered.
	Window int
	// Classes selects which decomposed records enter the window.
	Classes vcf.ClassSet
	// Aligner, when set, normalizes insertions and deletions on admission.
	Aligner Aligner
}

// Entry is the list of records sharing one position.
type Entry struct {
	Pos     int64
	Records []*vcf.Record
}

// Origins returns the distinct lines behind the entry's records, in
// admission order. Decomposed alleles collapse back onto their line.
func (e Entry) Origins() []*vcf.Record {
	out := make([]*vcf.Record, 0, len(e.Records))
	for _, r := range e.Records {
		o := r.Origin()
		dup := false
		for _, seen := range out {
			if seen == o {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, o)
		}
	}
	return out
}

type posEntry struct {
	pos     int64
	records []*vcf.Record
}

func (e *posEntry) Compare(b llrb.Comparable) int {
	return cmp.Compare(e.pos, b.(*posEntry).pos)
}

// VariantStore is a windowed, position-ordered buffer of decomposed
// variant records for the reference sequence it is anchored on.
type VariantStore struct {
	src    vcf.RecordSource
	name   string
	opts   Options
	logger *zap.Logger

	window  llrb.Tree
	size    int
	chrom   string
	lastPos int64
	visited []string
	done    bool
	dropped int
}

// NewVariantStore creates a store reading from src. Name labels the
// stream in errors and logs.
func NewVariantStore(src vcf.RecordSource, name string, opts Options) *VariantStore {
	if opts.Classes == (vcf.ClassSet{}) {
		opts.Classes = vcf.AllClasses
	}
	return &VariantStore{
		src:    src,
		name:   name,
		opts:   opts,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (s *VariantStore) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Name returns the stream label.
func (s *VariantStore) Name() string {
	return s.name
}

// Chrom returns the reference sequence the window is anchored on.
func (s *VariantStore) Chrom() string {
	return s.chrom
}

// Visited returns the reference sequences anchored so far, in order.
func (s *VariantStore) Visited() []string {
	return s.visited
}

// Exhausted reports whether the input has been fully consumed.
func (s *VariantStore) Exhausted() bool {
	return s.done
}

// Len returns the number of buffered records.
func (s *VariantStore) Len() int {
	return s.size
}

// Dropped returns how many decomposed records the class filter rejected.
func (s *VariantStore) Dropped() int {
	return s.dropped
}

// Anchor moves the store onto the reference sequence of the next unread
// record and fills the window. It returns false once the input is
// exhausted. The window must be empty.
func (s *VariantStore) Anchor() (bool, error) {
	if s.size > 0 {
		return false, fmt.Errorf("%s: anchor with %d records still buffered on %s", s.name, s.size, s.chrom)
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
			return false, &OrderError{Source: s.name, Chrom: next.Chrom, Pos: next.Pos,
				Message: "reference sequence appears in more than one block"}
		}
	}

	s.chrom = next.Chrom
	s.lastPos = 0
	s.visited = append(s.visited, s.chrom)
	s.logger.Debug("anchored variant window", zap.String("source", s.name), zap.String("chrom", s.chrom))

	_, err = s.Refill()
	return true, err
}

// Refill pulls records into the window until it holds Window records or
// the reader leaves the anchored reference sequence. It reports whether
// more records remain on this reference sequence.
func (s *VariantStore) Refill() (bool, error) {
	for {
		next, err := s.src.Peek()
		if err != nil {
			return false, err
		}
		if next == nil || next.Chrom != s.chrom {
			return false, nil
		}
		if s.opts.Window > 0 && s.size >= s.opts.Window {
			return true, nil
		}
		if err := s.admitNext(); err != nil {
			return false, err
		}
	}
}

func (s *VariantStore) admitNext() error {
	rec, err := s.src.Next()
	if err != nil {
		return err
	}
	if rec.Pos < s.lastPos {
		return &OrderError{Source: s.name, Chrom: rec.Chrom, Pos: rec.Pos,
			Message: fmt.Sprintf("position follows %d", s.lastPos)}
	}
	s.lastPos = rec.Pos

	subs := vcf.Decompose(rec)
	if s.opts.Aligner != nil {
		if subs, err = s.normalize(subs); err != nil {
			return err
		}
	}
	for _, sub := range subs {
		if !s.opts.Classes.Allows(sub.Class) {
			s.dropped++
			continue
		}
		s.insert(sub)
	}
	return nil
}

// normalize runs the aligner over indel alleles. When any allele of a
// line moves, every allele of that line is emitted on its own.
func (s *VariantStore) normalize(subs []*vcf.Record) ([]*vcf.Record, error) {
	changed := false
	out := make([]*vcf.Record, len(subs))
	for i, sub := range subs {
		out[i] = sub
		if !sub.Class.IsIndel() {
			continue
		}
		pos, ref, alt, err := s.opts.Aligner.Align(sub.Chrom, sub.Pos, sub.Ref, sub.Alt)
		if err != nil {
			return nil, fmt.Errorf("align %s:%d %s>%s: %w", sub.Chrom, sub.Pos, sub.Ref, sub.Alt, err)
		}
		if pos == sub.Pos && ref == sub.Ref && alt == sub.Alt {
			continue
		}
		c := sub.Clone()
		c.Pos, c.Ref, c.Alt = pos, ref, alt
		c.Class = vcf.Classify(ref, alt)
		out[i] = c
		changed = true
	}
	if !changed {
		return subs, nil
	}
	for i, sub := range out {
		if sub == subs[i] {
			sub = sub.Clone()
			out[i] = sub
		}
		sub.Normalized = true
	}
	return out, nil
}

func (s *VariantStore) insert(r *vcf.Record) {
	key := &posEntry{pos: r.Pos}
	if e := s.window.Get(key); e != nil {
		pe := e.(*posEntry)
		pe.records = append(pe.records, r)
	} else {
		key.records = []*vcf.Record{r}
		s.window.Insert(key)
	}
	s.size++
}

// Front returns the lowest-position entry without removing it. Before
// exposing it the store admits any unread record that could still land at
// or before that position, so the entry is complete. It returns false when
// the anchored reference sequence has no more records.
func (s *VariantStore) Front() (Entry, bool, error) {
	for {
		if s.size == 0 {
			if _, err := s.Refill(); err != nil {
				return Entry{}, false, err
			}
			if s.size == 0 {
				return Entry{}, false, nil
			}
		}
		front := s.window.Min().(*posEntry)

		next, err := s.src.Peek()
		if err != nil {
			return Entry{}, false, err
		}
		if next == nil || next.Chrom != s.chrom || next.Pos > front.pos {
			return Entry{Pos: front.pos, Records: front.records}, true, nil
		}
		if err := s.admitNext(); err != nil {
			return Entry{}, false, err
		}
	}
}

// FrontPosition returns the position of the front entry.
func (s *VariantStore) FrontPosition() (int64, bool, error) {
	e, ok, err := s.Front()
	return e.Pos, ok, err
}

// PopFront removes and returns the front entry.
func (s *VariantStore) PopFront() (Entry, bool, error) {
	e, ok, err := s.Front()
	if !ok || err != nil {
		return e, ok, err
	}
	s.window.DeleteMin()
	s.size -= len(e.Records)
	return e, true, nil
}

// DrainRemaining pops every entry left on the anchored reference sequence,
// refilling as it goes. When write is set each entry's lines go to w.
func (s *VariantStore) DrainRemaining(w vcf.RecordWriter, write bool) error {
	for {
		e, ok, err := s.PopFront()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !write {
			continue
		}
		for _, r := range e.Origins() {
			if err := w.WriteRecord(r); err != nil {
				return err
			}
		}
	}
}
