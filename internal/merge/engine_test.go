package merge

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-setops/internal/bed"
	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

const title = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

type memWriter struct {
	header  *vcf.Header
	records []*vcf.Record
}

func (w *memWriter) WriteHeader(h *vcf.Header) error {
	w.header = h
	return nil
}

func (w *memWriter) WriteRecord(r *vcf.Record) error {
	w.records = append(w.records, r)
	return nil
}

func (w *memWriter) loci() []string {
	var out []string
	for _, r := range w.records {
		out = append(out, fmt.Sprintf("%s:%d", r.Chrom, r.Pos))
	}
	return out
}

func openVCF(t *testing.T, name, text string) *vcf.Reader {
	t.Helper()
	if !strings.Contains(text, "#CHROM") {
		text = title + text
	}
	r, err := vcf.NewReader(strings.NewReader(text), name)
	require.NoError(t, err)
	return r
}

func openBED(name, text string) *bed.Reader {
	return bed.NewReader(strings.NewReader(text), name)
}

func newEngine(t *testing.T, opts ...func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func withWindow(n int) func(*Config) {
	return func(c *Config) { c.Window = n }
}

func TestIntersect_Self(t *testing.T) {
	body := "chr1\t100\t.\tA\tG\t50\tPASS\t.\n"
	w := &memWriter{}
	sum, err := newEngine(t).Intersect(openVCF(t, "a.vcf", body), openVCF(t, "a2.vcf", body), w)
	require.NoError(t, err)

	require.Len(t, w.records, 1)
	assert.Equal(t, "chr1\t100\t.\tA\tG\t50\tPASS\t.", w.records[0].String())
	assert.Equal(t, 1, sum.Written)
	assert.False(t, sum.ChromMismatch)
}

func TestUnique(t *testing.T) {
	a := "chr1\t5\t.\tA\tG\t.\t.\t.\nchr1\t10\t.\tA\tG\t.\t.\t.\nchr1\t15\t.\tA\tG\t.\t.\t.\n"
	b := "chr1\t10\t.\tA\tG\t.\t.\t.\n"

	for _, window := range []int{1, 2, 0} {
		t.Run(fmt.Sprintf("window=%d", window), func(t *testing.T) {
			w := &memWriter{}
			_, err := newEngine(t, withWindow(window)).Unique(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
			require.NoError(t, err)
			assert.Equal(t, []string{"chr1:5", "chr1:15"}, w.loci())
		})
	}
}

func TestIntersect_MergePriority(t *testing.T) {
	a := "chr1\t100\t.\tA\tG\t50\tPASS\tAC=3;DP=10\n"
	b := "chr1\t100\trs9\tA\tG\t60\tPASS\tAC=7;SOMATIC\n"
	e := newEngine(t, func(c *Config) { c.Priority = PriorityMerge })

	w := &memWriter{}
	_, err := e.Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	require.Len(t, w.records, 1)

	r := w.records[0]
	ac, _ := r.Info.Get("AC")
	assert.Equal(t, "3/7", ac)
	dp, _ := r.Info.Get("DP")
	assert.Equal(t, "10/.", dp)
	assert.True(t, r.Info.IsFlag("SOMATIC"))
	assert.Equal(t, "rs9", r.ID)
	assert.Equal(t, 60.0, r.Qual)

	assert.Equal(t, []vcf.Dataset{{ID: 1, Name: "a.vcf"}, {ID: 2, Name: "b.vcf"}}, w.header.Files)
}

func TestIntersect_MergePadsEveryDataset(t *testing.T) {
	a := "##FILE=<ID=1,\"x.vcf\">\n##FILE=<ID=2,\"y.vcf\">\n" + title +
		"chr1\t100\t.\tA\tG\t.\t.\tAC=1/2\n"
	b := "chr1\t100\t.\tA\tG\t.\t.\tAC=5;DP=4\n"
	e := newEngine(t, func(c *Config) { c.Priority = PriorityMerge })

	w := &memWriter{}
	_, err := e.Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	require.Len(t, w.records, 1)

	ac, _ := w.records[0].Info.Get("AC")
	assert.Equal(t, "1/2/5", ac)
	dp, _ := w.records[0].Info.Get("DP")
	assert.Equal(t, "././4", dp)

	require.Len(t, w.header.Files, 3)
	assert.Equal(t, vcf.Dataset{ID: 3, Name: "b.vcf"}, w.header.Files[2])
}

func TestUnion_MergePadsLoneRecords(t *testing.T) {
	a := "chr1\t5\t.\tA\tG\t.\t.\tAC=3\n" +
		"chr1\t9\t.\tA\tG\t.\t.\tAC=4;DB\n" +
		"chr2\t3\t.\tA\tG\t.\t.\tAC=1\n"
	b := "chr1\t5\t.\tA\tG\t.\t.\tAC=7\n" +
		"chr1\t7\t.\tA\tG\t.\t.\tAC=2\n"
	e := newEngine(t, func(c *Config) { c.Priority = PriorityMerge })

	w := &memWriter{}
	_, err := e.Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)

	require.Equal(t, []string{"chr1:5", "chr1:7", "chr1:9", "chr2:3"}, w.loci())
	var infos []string
	for _, r := range w.records {
		infos = append(infos, r.Info.String())
	}
	assert.Equal(t, []string{"AC=3/7", "AC=./2", "AC=4/.;DB", "AC=1/."}, infos)
}

func TestIntersect_Priority(t *testing.T) {
	a := "chr1\t100\tfromA\tA\tG\t50\t.\t.\nchr1\t200\tfromA\tA\tG\t30\t.\t.\n"
	b := "chr1\t100\tfromB\tA\tG\t50\t.\t.\nchr1\t200\tfromB\tA\tG\t90\t.\t.\n"

	tests := []struct {
		name string
		cfg  func(*Config)
		want []string
	}{
		{"quality", func(c *Config) {}, []string{"fromA", "fromB"}},
		{"file 1", func(c *Config) { c.Priority = PriorityFile; c.PriorityFile = 1 }, []string{"fromA", "fromA"}},
		{"file 2", func(c *Config) { c.Priority = PriorityFile; c.PriorityFile = 2 }, []string{"fromB", "fromB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &memWriter{}
			_, err := newEngine(t, tt.cfg).Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
			require.NoError(t, err)
			var ids []string
			for _, r := range w.records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUnion_Completeness(t *testing.T) {
	a := "chr1\t10\t.\tA\tG\t.\t.\t.\nchr1\t20\t.\tA\tG\t.\t.\t.\nchr2\t5\t.\tA\tG\t.\t.\t.\n"
	b := "chr1\t15\t.\tA\tG\t.\t.\t.\nchr1\t20\t.\tA\tG\t.\t.\t.\nchr3\t7\t.\tA\tG\t.\t.\t.\n"

	for _, window := range []int{1, 2, 1000, 0} {
		t.Run(fmt.Sprintf("window=%d", window), func(t *testing.T) {
			w := &memWriter{}
			sum, err := newEngine(t, withWindow(window)).Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
			require.NoError(t, err)
			assert.Equal(t, []string{"chr1:10", "chr1:15", "chr1:20", "chr2:5", "chr3:7"}, w.loci())
			assert.Equal(t, 5, sum.Written)
			assert.True(t, sum.ChromMismatch)
		})
	}
}

func TestUnique_ComplementsIntersect(t *testing.T) {
	var a, b strings.Builder
	nA := 0
	for pos := 1; pos <= 60; pos++ {
		if pos%2 == 0 || pos%5 == 0 {
			fmt.Fprintf(&a, "chr1\t%d\t.\tA\tG\t.\t.\t.\n", pos)
			nA++
		}
		if pos%3 == 0 {
			fmt.Fprintf(&b, "chr1\t%d\t.\tA\tG\t.\t.\t.\n", pos)
		}
	}

	for _, window := range []int{1, 3, 0} {
		e := newEngine(t, withWindow(window))
		inter, uniq := &memWriter{}, &memWriter{}
		_, err := e.Intersect(openVCF(t, "a.vcf", a.String()), openVCF(t, "b.vcf", b.String()), inter)
		require.NoError(t, err)
		_, err = e.Unique(openVCF(t, "a.vcf", a.String()), openVCF(t, "b.vcf", b.String()), uniq)
		require.NoError(t, err)

		assert.Equal(t, nA, len(inter.records)+len(uniq.records), "window %d", window)
		for _, r := range inter.records {
			assert.Zero(t, r.Pos%3)
		}
		for _, r := range uniq.records {
			assert.NotZero(t, r.Pos%3)
		}
	}
}

func TestIntersect_SampleMismatch(t *testing.T) {
	a := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n"
	b := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS2\n"
	_, err := newEngine(t).Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), &memWriter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSampleMismatch))

	// Unique never combines sample columns.
	_, err = newEngine(t).Unique(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), &memWriter{})
	assert.NoError(t, err)
}

func TestIntersect_InfoTypeConflict(t *testing.T) {
	a := "##INFO=<ID=AC,Number=1,Type=Integer,Description=\"count\">\n" + title
	b := "##INFO=<ID=AC,Number=1,Type=String,Description=\"count\">\n" + title
	e := newEngine(t, func(c *Config) { c.Priority = PriorityMerge })

	_, err := e.Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), &memWriter{})
	var typeErr *InfoTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "AC", typeErr.ID)
	assert.True(t, errors.Is(err, vcf.ErrHeaderInconsistency))

	// Only merging needs agreeing types.
	_, err = newEngine(t).Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), &memWriter{})
	assert.NoError(t, err)
}

func TestIntersect_ChromTransitions(t *testing.T) {
	a := "chr1\t5\t.\tA\tG\t.\t.\t.\nchr2\t5\t.\tA\tG\t.\t.\t.\nchr3\t5\t.\tA\tG\t.\t.\t.\n"
	b := "chr2\t5\t.\tA\tG\t.\t.\t.\nchr3\t5\t.\tA\tG\t.\t.\t.\nchr4\t5\t.\tA\tG\t.\t.\t.\n"

	w := &memWriter{}
	sum, err := newEngine(t, withWindow(1)).Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr2:5", "chr3:5"}, w.loci())
	assert.True(t, sum.ChromMismatch)
}

func TestIntersect_ContigOrder(t *testing.T) {
	contigs := "##contig=<ID=chr2>\n##contig=<ID=chr1>\n" + title
	a := "chr2\t5\t.\tA\tG\t.\t.\t.\nchr1\t5\t.\tA\tG\t.\t.\t.\n"
	b := "chr1\t5\t.\tA\tG\t.\t.\t.\n"

	w := &memWriter{}
	_, err := newEngine(t).Intersect(openVCF(t, "a.vcf", contigs+a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:5"}, w.loci())
}

func TestUnion_TrimmedOutputSorted(t *testing.T) {
	// The insertion at 100 trims to 102, past the raw line at 101.
	a := "chr1\t100\t.\tACG\tACGT\t.\t.\t.\n" +
		"chr1\t101\t.\tC\tT\t.\t.\t.\n" +
		"chr1\t102\t.\tG\tA\t.\t.\t.\n"
	e := newEngine(t, func(c *Config) { c.Aligner = store.TrimAligner{} })

	w := &memWriter{}
	_, err := e.Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", ""), w)
	require.NoError(t, err)
	require.Equal(t, []string{"chr1:101", "chr1:102", "chr1:102"}, w.loci())
	assert.Equal(t, "GT", w.records[1].Alt)
	assert.Equal(t, "A", w.records[2].Alt)
}

func TestIntersect_LexicalChromOrder(t *testing.T) {
	// chr10 sorts before chr2 here and only A has it.
	a := "chr1\t5\t.\tA\tG\t.\t.\t.\nchr10\t5\t.\tA\tG\t.\t.\t.\nchr2\t5\t.\tA\tG\t.\t.\t.\n"
	b := "chr1\t5\t.\tA\tG\t.\t.\t.\nchr2\t5\t.\tA\tG\t.\t.\t.\n"

	w := &memWriter{}
	sum, err := newEngine(t).Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:5", "chr2:5"}, w.loci())
	assert.True(t, sum.ChromMismatch)

	w = &memWriter{}
	_, err = newEngine(t).Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:5", "chr10:5", "chr2:5"}, w.loci())
}

func TestComparePositions(t *testing.T) {
	at := func(chrom string, pos int64) store.Entry {
		return store.Entry{Pos: pos, Records: []*vcf.Record{{Chrom: chrom, Pos: pos}}}
	}

	c, err := comparePositions(at("chr1", 5), at("chr1", 9))
	require.NoError(t, err)
	assert.Equal(t, -1, c)
	c, err = comparePositions(at("chr1", 9), at("chr1", 9))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	_, err = comparePositions(at("chr1", 5), at("chr2", 5))
	assert.ErrorIs(t, err, ErrStreamDesync)
}

func TestIntersect_MultiAllelicLine(t *testing.T) {
	a := "chr1\t100\t.\tAC\tA,ACC\t.\t.\t.\n"
	b := "chr1\t100\t.\tAC\tA\t.\t.\t.\n"

	w := &memWriter{}
	_, err := newEngine(t).Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), w)
	require.NoError(t, err)
	require.Len(t, w.records, 1)
	assert.Equal(t, "A,ACC", w.records[0].Alt)
}

func TestMatchAlleles(t *testing.T) {
	a := "chr1\t100\t.\tA\tG\t.\t.\t.\nchr1\t200\t.\tA\tC\t.\t.\t.\n"
	b := "chr1\t100\t.\tA\tT\t.\t.\t.\nchr1\t200\t.\tA\tC\t.\t.\t.\n"
	e := newEngine(t, func(c *Config) { c.MatchAlleles = true })

	inter := &memWriter{}
	_, err := e.Intersect(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), inter)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:200"}, inter.loci())

	union := &memWriter{}
	_, err = e.Union(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), union)
	require.NoError(t, err)
	require.Equal(t, []string{"chr1:100", "chr1:100", "chr1:200"}, union.loci())
	assert.Equal(t, "G", union.records[0].Alt)
	assert.Equal(t, "T", union.records[1].Alt)

	uniq := &memWriter{}
	_, err = e.Unique(openVCF(t, "a.vcf", a), openVCF(t, "b.vcf", b), uniq)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:100"}, uniq.loci())
}

func TestIntersect_ClassFilter(t *testing.T) {
	body := "chr1\t100\t.\tA\tG\t.\t.\t.\nchr1\t200\t.\tAT\tA\t.\t.\t.\n"
	e := newEngine(t, func(c *Config) { c.Classes = vcf.ClassSet{SNPs: true} })

	w := &memWriter{}
	sum, err := e.Intersect(openVCF(t, "a.vcf", body), openVCF(t, "b.vcf", body), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:100"}, w.loci())
	assert.Equal(t, 1, sum.DroppedA)
	assert.Equal(t, 1, sum.DroppedB)
}

func TestNewEngine_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Priority = PriorityFile
	cfg.PriorityFile = 3
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestIntersect_SelfIsIdentity(t *testing.T) {
	body := "chr1\t10\trs1\tA\tG\t30\tPASS\tDP=4\n" +
		"chr1\t10\t.\tAT\tA,ATT\t12\tPASS\t.\n" +
		"chr1\t25\t.\tC\tT,G\t.\tq10\tAC=1,2\n" +
		"chr2\t7\t.\tG\tA\t99\tPASS\t.\n"

	for _, window := range []int{1, 2, 0} {
		t.Run(fmt.Sprintf("window=%d", window), func(t *testing.T) {
			w := &memWriter{}
			_, err := newEngine(t, withWindow(window)).Intersect(openVCF(t, "a.vcf", body), openVCF(t, "b.vcf", body), w)
			require.NoError(t, err)

			var got []string
			for _, r := range w.records {
				got = append(got, r.String())
			}
			assert.Equal(t, strings.Split(strings.TrimSuffix(body, "\n"), "\n"), got)
		})
	}
}
