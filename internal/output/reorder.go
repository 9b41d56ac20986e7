package output

import (
	"cmp"

	"github.com/biogo/store/llrb"
	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/vcf"
)

// DefaultReorderCapacity is the number of records a Reorderer holds back.
const DefaultReorderCapacity = 10000

type pending struct {
	pos int64
	seq int // arrival order breaks position ties
	rec *vcf.Record
}

func (p *pending) Compare(b llrb.Comparable) int {
	q := b.(*pending)
	if c := cmp.Compare(p.pos, q.pos); c != 0 {
		return c
	}
	return cmp.Compare(p.seq, q.seq)
}

// Reorderer restores position order within a reference sequence for
// records that arrive slightly out of order. It holds back up to its
// capacity and releases the lowest position first. A change of reference
// sequence releases everything held.
//
// The stores already emit sorted output for aligners that only move
// positions right, as TrimAligner does. The Reorderer covers aligners
// that move a record left of lines already written; Late counts what it
// could not fix.
type Reorderer struct {
	next     Sink
	capacity int
	logger   *zap.Logger

	held    llrb.Tree
	chrom   string
	seq     int
	lastPos int64
	late    int
}

// NewReorderer wraps next. A capacity of zero or less uses
// DefaultReorderCapacity.
func NewReorderer(next Sink, capacity int) *Reorderer {
	if capacity <= 0 {
		capacity = DefaultReorderCapacity
	}
	return &Reorderer{next: next, capacity: capacity, logger: zap.NewNop()}
}

// SetLogger sets the logger for out-of-order warnings.
func (ro *Reorderer) SetLogger(l *zap.Logger) {
	ro.logger = l
}

// WriteHeader passes the header through.
func (ro *Reorderer) WriteHeader(h *vcf.Header) error {
	return ro.next.WriteHeader(h)
}

// WriteRecord holds r until enough later records have arrived.
func (ro *Reorderer) WriteRecord(r *vcf.Record) error {
	if r.Chrom != ro.chrom {
		if err := ro.Flush(); err != nil {
			return err
		}
		ro.chrom = r.Chrom
		ro.lastPos = 0
	}
	ro.held.Insert(&pending{pos: r.Pos, seq: ro.seq, rec: r})
	ro.seq++
	if ro.held.Len() > ro.capacity {
		return ro.release()
	}
	return nil
}

func (ro *Reorderer) release() error {
	p := ro.held.Min().(*pending)
	ro.held.DeleteMin()
	if p.pos < ro.lastPos {
		ro.late++
		ro.logger.Warn("record released out of order",
			zap.String("chrom", p.rec.Chrom),
			zap.Int64("pos", p.pos),
			zap.Int64("after", ro.lastPos))
	}
	ro.lastPos = p.pos
	return ro.next.WriteRecord(p.rec)
}

// Flush releases every held record.
func (ro *Reorderer) Flush() error {
	for ro.held.Len() > 0 {
		if err := ro.release(); err != nil {
			return err
		}
	}
	return nil
}

// Late returns how many records were released behind an earlier position
// because the capacity was too small to reorder them.
func (ro *Reorderer) Late() int {
	return ro.late
}
