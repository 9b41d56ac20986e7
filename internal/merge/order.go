package merge

import (
	"strconv"
	"strings"

	"github.com/inodb/vcf-setops/internal/vcf"
)

// ChromOrder decides which of two reference sequences comes first when two
// streams sit on different ones. Evidence is consulted in order: a stream
// that already passed a name, the ##contig lines of the inputs, the stream
// that moved to its sequence most recently being ahead, then a natural
// ordering of the names.
type ChromOrder struct {
	index map[string]int
}

// NewChromOrder collects ##contig order from the given headers. The first
// header to name a contig fixes its rank.
func NewChromOrder(headers ...*vcf.Header) *ChromOrder {
	o := &ChromOrder{index: make(map[string]int)}
	for _, h := range headers {
		if h == nil {
			continue
		}
		for _, c := range h.Contigs {
			if _, ok := o.index[c]; !ok {
				o.index[c] = len(o.index)
			}
		}
	}
	return o
}

// Cursor is where one stream stands.
type Cursor struct {
	Chrom string
	// Visited ends with Chrom.
	Visited []string
	// Advanced is set on the stream that moved to a new reference sequence
	// last.
	Advanced bool
}

// Behind reports whether stream x is behind stream y.
func (o *ChromOrder) Behind(x, y Cursor) bool {
	if contains(passed(y.Visited), x.Chrom) {
		return true
	}
	if contains(passed(x.Visited), y.Chrom) {
		return false
	}
	ix, okx := o.index[x.Chrom]
	iy, oky := o.index[y.Chrom]
	if okx && oky {
		return ix < iy
	}
	if x.Advanced != y.Advanced {
		return y.Advanced
	}
	return NaturalLess(x.Chrom, y.Chrom)
}

func passed(visited []string) []string {
	if len(visited) == 0 {
		return nil
	}
	return visited[:len(visited)-1]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// NaturalLess orders reference sequence names the way sorted genome files
// usually are: an optional chr prefix is ignored, numbered sequences come
// first in numeric order, then X, Y and the mitochondrion, then anything
// else lexically.
func NaturalLess(a, b string) bool {
	ra, rb := chromRank(a), chromRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func chromRank(name string) int {
	n := name
	if len(n) > 3 && strings.EqualFold(n[:3], "chr") {
		n = n[3:]
	}
	if v, err := strconv.Atoi(n); err == nil && v >= 0 {
		return v
	}
	switch strings.ToUpper(n) {
	case "X":
		return 1 << 20
	case "Y":
		return 1<<20 + 1
	case "M", "MT":
		return 1<<20 + 2
	}
	return 1 << 30
}
