package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/inodb/vcf-setops/internal/bed"
	"github.com/inodb/vcf-setops/internal/duckdb"
	"github.com/inodb/vcf-setops/internal/merge"
	"github.com/inodb/vcf-setops/internal/output"
	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// opFlags collects the flags of the set-operation commands.
type opFlags struct {
	a       string
	b       string
	bedPath string
	dbsnp   string
	vcfPath string

	output     string
	db         string
	sortBuffer int

	priority     string
	priorityFile int
	unique       bool

	snps   bool
	mnps   bool
	indels bool

	matchAlleles     bool
	trimAlleles      bool
	infoKey          string
	mergeAnnotations bool
}

func (f *opFlags) addCommon(fs *pflag.FlagSet) {
	fs.StringVarP(&f.a, "a", "a", "", "First input VCF (use '-' for stdin)")
	fs.StringVarP(&f.output, "output", "o", "-", "Output VCF (default: stdout; .gz compresses)")
	fs.StringVar(&f.db, "db", "", "Also export written records to this DuckDB database")
	fs.BoolVarP(&f.snps, "snps", "s", false, "Select SNPs")
	fs.BoolVarP(&f.mnps, "mnps", "m", false, "Select MNPs")
	fs.BoolVarP(&f.indels, "indels", "d", false, "Select insertions and deletions")
	fs.BoolVar(&f.matchAlleles, "match-alleles", false, "Records collide only when REF and ALT also match")
	fs.BoolVar(&f.trimAlleles, "trim-alleles", false, "Trim shared bases from indel alleles before comparing")
	fs.IntVar(&f.sortBuffer, "sort-buffer", output.DefaultReorderCapacity, "Records held to restore order when an aligner moves positions left")
}

func (f *opFlags) addPriority(fs *pflag.FlagSet) {
	fs.StringVar(&f.priority, "priority", "default", "Collision priority: default (higher QUAL), file or merge")
	fs.IntVar(&f.priorityFile, "priority-file", 1, "Input that wins under --priority file: 1 or 2")
}

func (ap *app) intersectCmd() *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   "intersect",
		Short: "Write records present in both inputs",
		Example: `  vcf-setops intersect -a a.vcf -b b.vcf -o both.vcf
  vcf-setops intersect -a a.vcf.gz --bed targets.bed
  vcf-setops intersect -a a.vcf -b b.vcf --priority merge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireSecond(); err != nil {
				return err
			}
			op := merge.OpIntersect
			if f.unique {
				op = merge.OpUnique
			}
			return ap.execute(cmd, f, op, func(e *merge.Engine, w merge.Writer) (merge.Summary, error) {
				if f.bedPath != "" {
					if f.unique {
						return withIntervals(f.a, f.bedPath, w, e.UniqueBED)
					}
					return withIntervals(f.a, f.bedPath, w, e.IntersectBED)
				}
				if f.unique {
					return withVariants(f.a, f.b, w, e.Unique)
				}
				return withVariants(f.a, f.b, w, e.Intersect)
			})
		},
	}
	f.addCommon(cmd.Flags())
	f.addPriority(cmd.Flags())
	cmd.Flags().StringVarP(&f.b, "b", "b", "", "Second input VCF")
	cmd.Flags().StringVar(&f.bedPath, "bed", "", "Second input BED instead of a VCF")
	cmd.Flags().BoolVar(&f.unique, "unique", false, "Write records of -a absent from the second input instead")
	return cmd
}

func (ap *app) unionCmd() *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:     "union",
		Short:   "Write records present in either input",
		Example: `  vcf-setops union -a a.vcf -b b.vcf --priority merge -o all.vcf`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.a == "" || f.b == "" {
				return usagef("union needs -a and -b")
			}
			return ap.execute(cmd, f, merge.OpUnion, func(e *merge.Engine, w merge.Writer) (merge.Summary, error) {
				return withVariants(f.a, f.b, w, e.Union)
			})
		},
	}
	f.addCommon(cmd.Flags())
	f.addPriority(cmd.Flags())
	cmd.Flags().StringVarP(&f.b, "b", "b", "", "Second input VCF")
	return cmd
}

func (ap *app) uniqueCmd() *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   "unique",
		Short: "Write records of the first input absent from the second",
		Example: `  vcf-setops unique -a tumor.vcf -b normal.vcf
  vcf-setops unique -a calls.vcf --bed blacklist.bed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.requireSecond(); err != nil {
				return err
			}
			return ap.execute(cmd, f, merge.OpUnique, func(e *merge.Engine, w merge.Writer) (merge.Summary, error) {
				if f.bedPath != "" {
					return withIntervals(f.a, f.bedPath, w, e.UniqueBED)
				}
				return withVariants(f.a, f.b, w, e.Unique)
			})
		},
	}
	f.addCommon(cmd.Flags())
	cmd.Flags().StringVarP(&f.b, "b", "b", "", "Second input VCF")
	cmd.Flags().StringVar(&f.bedPath, "bed", "", "Second input BED instead of a VCF")
	return cmd
}

func (ap *app) annotateCmd() *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Write every record of the first input, annotated from the second",
		Example: `  vcf-setops annotate -a calls.vcf --bed genes.bed --info-key GENE
  vcf-setops annotate -a calls.vcf --dbsnp dbsnp.vcf.gz
  vcf-setops annotate -a calls.vcf --vcf gnomad.vcf.gz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.a == "" {
				return usagef("annotate needs -a")
			}
			n := 0
			for _, p := range []string{f.bedPath, f.dbsnp, f.vcfPath} {
				if p != "" {
					n++
				}
			}
			if n != 1 {
				return usagef("annotate needs exactly one of --bed, --dbsnp or --vcf")
			}
			return ap.execute(cmd, f, merge.OpAnnotate, func(e *merge.Engine, w merge.Writer) (merge.Summary, error) {
				switch {
				case f.bedPath != "":
					return withIntervals(f.a, f.bedPath, w, e.AnnotateBED)
				case f.dbsnp != "":
					return withVariants(f.a, f.dbsnp, w, annotateWith(e, merge.AnnotateDBSNP))
				}
				return withVariants(f.a, f.vcfPath, w, annotateWith(e, merge.AnnotateVCF))
			})
		},
	}
	f.addCommon(cmd.Flags())
	cmd.Flags().StringVar(&f.bedPath, "bed", "", "Annotate from BED interval names")
	cmd.Flags().StringVar(&f.dbsnp, "dbsnp", "", "Fill IDs and set DB from a dbSNP VCF")
	cmd.Flags().StringVar(&f.vcfPath, "vcf", "", "Copy missing INFO keys from a VCF")
	cmd.Flags().StringVar(&f.infoKey, "info-key", merge.DefaultAnnotationKey, "INFO key written by --bed annotation")
	cmd.Flags().BoolVar(&f.mergeAnnotations, "merge-annotations", true, "Join the names of overlapping intervals")
	return cmd
}

func annotateWith(e *merge.Engine, mode merge.AnnotateMode) func(a, b merge.VariantInput, w merge.Writer) (merge.Summary, error) {
	return func(a, b merge.VariantInput, w merge.Writer) (merge.Summary, error) {
		return e.AnnotateVariants(a, b, mode, w)
	}
}

// requireSecond checks that -a and exactly one second input were given.
func (f *opFlags) requireSecond() error {
	switch {
	case f.a == "":
		return usagef("-a is required")
	case f.b != "" && f.bedPath != "":
		return usagef("-b and --bed are mutually exclusive")
	case f.b == "" && f.bedPath == "":
		return usagef("a second input (-b or --bed) is required")
	}
	return nil
}

// buildConfig turns flags and settings into the run configuration.
func (ap *app) buildConfig(cmd *cobra.Command, f *opFlags) (merge.Config, error) {
	cfg := merge.DefaultConfig()
	cfg.Window = ap.v.GetInt("window")

	priority := f.priority
	if fl := cmd.Flags().Lookup("priority"); fl == nil || !fl.Changed {
		priority = ap.v.GetString("priority")
	}
	p, err := merge.ParsePriority(priority)
	if err != nil {
		return cfg, &usageError{err: err}
	}
	cfg.Priority = p
	if f.priorityFile != 0 {
		cfg.PriorityFile = f.priorityFile
	}

	if f.snps || f.mnps || f.indels {
		cfg.Classes = vcf.ClassSet{SNPs: f.snps, MNPs: f.mnps, Indels: f.indels}
	}
	cfg.MatchAlleles = f.matchAlleles
	if f.infoKey != "" {
		cfg.AnnotationKey = f.infoKey
	}
	if cmd.Flags().Lookup("merge-annotations") != nil {
		cfg.MergeAnnotations = f.mergeAnnotations
	}
	if f.trimAlleles {
		cfg.Aligner = store.TrimAligner{}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &usageError{err: err}
	}
	return cfg, nil
}

// execute opens the outputs, runs body and closes everything in order.
func (ap *app) execute(cmd *cobra.Command, f *opFlags, op merge.Operation, body func(*merge.Engine, merge.Writer) (merge.Summary, error)) error {
	cfg, err := ap.buildConfig(cmd, f)
	if err != nil {
		return err
	}
	e, err := merge.NewEngine(cfg)
	if err != nil {
		return &usageError{err: err}
	}
	e.SetLogger(ap.logger)

	out, err := output.CreateVCF(f.output)
	if err != nil {
		return err
	}
	var sink output.Sink = out

	var records *duckdb.RecordSink
	if f.db != "" {
		db, err := duckdb.Open(f.db)
		if err != nil {
			out.Close()
			return err
		}
		defer db.Close()
		if err := recordDatasets(db, op, f); err != nil {
			out.Close()
			return err
		}
		records = db.NewRecordSink(op.String(), 0)
		sink = output.MultiSink(out, records)
	}

	// Any aligner may move positions; the Reorderer passes sorted input
	// through unchanged.
	var ro *output.Reorderer
	if cfg.Aligner != nil {
		ro = output.NewReorderer(sink, f.sortBuffer)
		ro.SetLogger(ap.logger)
		sink = ro
	}

	sum, err := body(e, sink)
	if err != nil {
		out.Close()
		return err
	}
	if ro != nil {
		if err := ro.Flush(); err != nil {
			out.Close()
			return err
		}
		if ro.Late() > 0 {
			ap.logger.Warn("output not fully sorted; raise --sort-buffer", zap.Int("late", ro.Late()))
		}
	}
	if records != nil {
		if err := records.Flush(); err != nil {
			out.Close()
			return err
		}
		ap.logger.Debug("exported records", zap.String("db", f.db), zap.Int("rows", records.Written()))
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output %s: %w", f.output, err)
	}
	if sum.DroppedA+sum.DroppedB > 0 {
		ap.logger.Info("records outside the selected classes were skipped",
			zap.Int("a", sum.DroppedA), zap.Int("b", sum.DroppedB))
	}
	return nil
}

func recordDatasets(db *duckdb.Store, op merge.Operation, f *opFlags) error {
	second := f.b
	for _, p := range []string{f.bedPath, f.dbsnp, f.vcfPath} {
		if p != "" {
			second = p
		}
	}
	for _, in := range []struct{ role, path string }{{"a", f.a}, {"b", second}} {
		fp, err := duckdb.StatFile(in.path)
		if err != nil {
			return err
		}
		if err := db.WriteDataset(duckdb.Dataset{Operation: op.String(), Role: in.role, FileFingerprint: fp}); err != nil {
			return err
		}
	}
	return nil
}

func withVariants(pathA, pathB string, w merge.Writer, fn func(a, b merge.VariantInput, w merge.Writer) (merge.Summary, error)) (merge.Summary, error) {
	a, err := vcf.Open(pathA)
	if err != nil {
		return merge.Summary{}, err
	}
	defer a.Close()
	b, err := vcf.Open(pathB)
	if err != nil {
		return merge.Summary{}, err
	}
	defer b.Close()
	return fn(a, b, w)
}

func withIntervals(pathA, pathB string, w merge.Writer, fn func(a merge.VariantInput, b merge.IntervalInput, w merge.Writer) (merge.Summary, error)) (merge.Summary, error) {
	a, err := vcf.Open(pathA)
	if err != nil {
		return merge.Summary{}, err
	}
	defer a.Close()
	b, err := bed.Open(pathB)
	if err != nil {
		return merge.Summary{}, err
	}
	defer b.Close()
	return fn(a, b, w)
}
