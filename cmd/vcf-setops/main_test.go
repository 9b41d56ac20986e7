package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-setops/internal/duckdb"
)

const header = "##fileformat=VCFv4.2\n" +
	"##INFO=<ID=AC,Number=A,Type=Integer,Description=\"Allele count\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

const fileA = header +
	"chr1\t5\t.\tA\tG\t20\tPASS\tAC=1\n" +
	"chr1\t10\t.\tA\tG\t20\tPASS\tAC=3\n" +
	"chr1\t15\t.\tA\tG\t20\tPASS\tAC=1\n"

const fileB = header +
	"chr1\t10\trs10\tA\tG\t40\tPASS\tAC=7\n" +
	"chr1\t20\t.\tA\tG\t40\tPASS\tAC=2\n"

type harness struct {
	t      *testing.T
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("VCFSETOPS_PRIORITY", "")
	return &harness{t: t, dir: dir}
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	return run(args, &h.stdout, &h.stderr)
}

// records returns the data lines of a VCF file.
func (h *harness) records(path string) []string {
	h.t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(h.t, err)
	var out []string
	for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out
}

func TestIntersect(t *testing.T) {
	h := newHarness(t)
	a, b := h.write("a.vcf", fileA), h.write("b.vcf", fileB)
	out := filepath.Join(h.dir, "out.vcf")

	code := h.run("intersect", "-a", a, "-b", b, "-o", out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, []string{"chr1\t10\trs10\tA\tG\t40\tPASS\tAC=7"}, h.records(out))

	code = h.run("intersect", "-a", a, "-b", b, "--priority", "file", "-o", out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, []string{"chr1\t10\t.\tA\tG\t20\tPASS\tAC=3"}, h.records(out))

	code = h.run("intersect", "-a", a, "-b", b, "--unique", "-o", out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Len(t, h.records(out), 2)
}

func TestUnion_MergeWithExport(t *testing.T) {
	h := newHarness(t)
	a, b := h.write("a.vcf", fileA), h.write("b.vcf", fileB)
	out := filepath.Join(h.dir, "out.vcf.gz")
	db := filepath.Join(h.dir, "export.duckdb")

	code := h.run("union", "-a", a, "-b", b, "--priority", "merge", "-o", out, "--db", db)
	require.Equal(t, ExitSuccess, code, h.stderr.String())

	s, err := duckdb.Open(db)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountRecords("union")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rows, err := s.LookupRecords("chr1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AC=3/7", rows[0].Info)
	assert.Equal(t, "rs10", rows[0].ID)

	datasets, err := s.Datasets("union")
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, a, datasets[0].Path)
	assert.Equal(t, b, datasets[1].Path)
}

func TestUnique_BED(t *testing.T) {
	h := newHarness(t)
	a := h.write("a.vcf", fileA)
	regions := h.write("regions.bed", "chr1\t8\t12\n")
	out := filepath.Join(h.dir, "out.vcf")

	code := h.run("unique", "-a", a, "--bed", regions, "-o", out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	got := h.records(out)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "chr1\t5\t"))
	assert.True(t, strings.HasPrefix(got[1], "chr1\t15\t"))
}

func TestAnnotate_BED(t *testing.T) {
	h := newHarness(t)
	a := h.write("a.vcf", fileA)
	genes := h.write("genes.bed", "chr1\t0\t12\tKRAS\nchr1\t9\t20\tNRAS\n")
	out := filepath.Join(h.dir, "out.vcf")

	code := h.run("annotate", "-a", a, "--bed", genes, "--info-key", "GENE", "-o", out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, []string{
		"chr1\t5\t.\tA\tG\t20\tPASS\tAC=1;GENE=KRAS",
		"chr1\t10\t.\tA\tG\t20\tPASS\tAC=3;GENE=KRAS,NRAS",
		"chr1\t15\t.\tA\tG\t20\tPASS\tAC=1;GENE=NRAS",
	}, h.records(out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "##INFO=<ID=GENE,")
}

func TestAnnotate_DBSNP(t *testing.T) {
	h := newHarness(t)
	a, b := h.write("a.vcf", fileA), h.write("dbsnp.vcf", fileB)
	out := filepath.Join(h.dir, "out.vcf")

	code := h.run("annotate", "-a", a, "--dbsnp", b, "-o", out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	got := h.records(out)
	require.Len(t, got, 3)
	assert.Equal(t, "chr1\t10\trs10\tA\tG\t20\tPASS\tAC=3;DB", got[1])
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	a, b := h.write("a.vcf", fileA), h.write("b.vcf", fileB)
	regions := h.write("r.bed", "chr1\t0\t10\n")

	tests := []struct {
		name string
		args []string
	}{
		{"no a", []string{"intersect", "-b", b}},
		{"no second input", []string{"intersect", "-a", a}},
		{"both second inputs", []string{"unique", "-a", a, "-b", b, "--bed", regions}},
		{"bad priority", []string{"union", "-a", a, "-b", b, "--priority", "loudest"}},
		{"bad priority file", []string{"union", "-a", a, "-b", b, "--priority", "file", "--priority-file", "3"}},
		{"annotate without source", []string{"annotate", "-a", a}},
		{"unknown flag", []string{"union", "--nope"}},
		{"unknown command", []string{"subtract"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ExitUsage, h.run(tt.args...), h.stderr.String())
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	h := newHarness(t)
	a := h.write("a.vcf", fileA)
	out := filepath.Join(h.dir, "out.vcf")

	t.Run("missing input", func(t *testing.T) {
		code := h.run("union", "-a", a, "-b", filepath.Join(h.dir, "missing.vcf"), "-o", out)
		assert.Equal(t, ExitError, code)
	})

	t.Run("sample mismatch", func(t *testing.T) {
		s1 := h.write("s1.vcf", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n")
		s2 := h.write("s2.vcf", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS2\n")
		code := h.run("intersect", "-a", s1, "-b", s2, "-o", out)
		assert.Equal(t, ExitError, code)
		assert.Contains(t, h.stderr.String(), "sample sets differ")
	})

	t.Run("malformed record", func(t *testing.T) {
		bad := h.write("bad.vcf", header+"chr1\tten\t.\tA\tG\t.\t.\t.\n")
		code := h.run("union", "-a", a, "-b", bad, "-o", out)
		assert.Equal(t, ExitError, code)
		assert.Contains(t, h.stderr.String(), "invalid position")
	})

	t.Run("unsorted input", func(t *testing.T) {
		unsorted := h.write("unsorted.vcf", header+
			"chr1\t20\t.\tA\tG\t.\t.\t.\nchr1\t10\t.\tA\tG\t.\t.\t.\n")
		code := h.run("union", "-a", a, "-b", unsorted, "-o", out)
		assert.Equal(t, ExitError, code)
	})
}

func TestConfig(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, ExitSuccess, h.run("config", "set", "priority", "merge"), h.stderr.String())
	assert.FileExists(t, filepath.Join(h.dir, configName))

	require.Equal(t, ExitSuccess, h.run("config", "get", "priority"))
	assert.Equal(t, "merge\n", h.stdout.String())

	// The stored priority applies when no flag overrides it.
	a, b := h.write("a.vcf", fileA), h.write("b.vcf", fileB)
	out := filepath.Join(h.dir, "out.vcf")
	require.Equal(t, ExitSuccess, h.run("intersect", "-a", a, "-b", b, "-o", out), h.stderr.String())
	assert.Equal(t, []string{"chr1\t10\trs10\tA\tG\t40\tPASS\tAC=3/7"}, h.records(out))

	assert.Equal(t, ExitError, h.run("config", "get", "no.such.key"))
}

func TestEnvironmentOverride(t *testing.T) {
	h := newHarness(t)
	t.Setenv("VCFSETOPS_PRIORITY", "file")
	a, b := h.write("a.vcf", fileA), h.write("b.vcf", fileB)
	out := filepath.Join(h.dir, "out.vcf")

	require.Equal(t, ExitSuccess, h.run("intersect", "-a", a, "-b", b, "-o", out), h.stderr.String())
	assert.Equal(t, []string{"chr1\t10\t.\tA\tG\t20\tPASS\tAC=3"}, h.records(out))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, ExitSuccess, h.run("version"))
	assert.Contains(t, h.stdout.String(), "vcf-setops version dev")
}
