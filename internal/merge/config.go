package merge

import (
	"fmt"
	"strings"

	"github.com/inodb/vcf-setops/internal/store"
	"github.com/inodb/vcf-setops/internal/vcf"
)

// Operation names a set operation.
type Operation int

const (
	OpIntersect Operation = iota
	OpUnion
	OpUnique
	OpAnnotate
)

func (op Operation) String() string {
	switch op {
	case OpIntersect:
		return "intersect"
	case OpUnion:
		return "union"
	case OpUnique:
		return "unique"
	case OpAnnotate:
		return "annotate"
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// Priority selects which record is emitted when two inputs collide at a
// coordinate.
type Priority int

const (
	// PriorityDefault emits the record with the higher quality score; ties
	// go to the first input.
	PriorityDefault Priority = iota
	// PriorityFile always emits the record from Config.PriorityFile.
	PriorityFile
	// PriorityMerge emits one record carrying both inputs' INFO values.
	PriorityMerge
)

func (p Priority) String() string {
	switch p {
	case PriorityDefault:
		return "default"
	case PriorityFile:
		return "file"
	case PriorityMerge:
		return "merge"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority parses a priority name.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "", "default", "quality":
		return PriorityDefault, nil
	case "file", "fixed", "fixed-file":
		return PriorityFile, nil
	case "merge":
		return PriorityMerge, nil
	}
	return 0, fmt.Errorf("unknown priority %q (want default, file or merge)", s)
}

// DefaultAnnotationKey is the INFO key written by BED annotation.
const DefaultAnnotationKey = "BED"

// Config is the immutable configuration of one run.
type Config struct {
	// Window is the per-stream buffer size; zero or less is unbounded.
	Window int
	// Classes selects which variant classes take part.
	Classes vcf.ClassSet
	// Priority resolves coordinate collisions between two variant inputs.
	Priority Priority
	// PriorityFile is 1 or 2 and names the winning input under PriorityFile.
	PriorityFile int
	// MatchAlleles makes records collide only when REF and ALT also agree.
	MatchAlleles bool
	// MergeAnnotations joins the annotation tokens of overlapping intervals.
	MergeAnnotations bool
	// AnnotationKey is the INFO key BED annotation writes.
	AnnotationKey string
	// Aligner, when set, normalizes indels as they enter a window.
	Aligner store.Aligner
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Window:           store.DefaultWindow,
		Classes:          vcf.AllClasses,
		Priority:         PriorityDefault,
		PriorityFile:     1,
		MergeAnnotations: true,
		AnnotationKey:    DefaultAnnotationKey,
	}
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.Classes == (vcf.ClassSet{}) {
		return fmt.Errorf("no variant classes selected")
	}
	if c.Priority == PriorityFile && c.PriorityFile != 1 && c.PriorityFile != 2 {
		return fmt.Errorf("priority file must be 1 or 2, got %d", c.PriorityFile)
	}
	if c.AnnotationKey == "" || strings.ContainsAny(c.AnnotationKey, "=;\t ") {
		return fmt.Errorf("invalid annotation key %q", c.AnnotationKey)
	}
	return nil
}

func (c Config) storeOptions() store.Options {
	return store.Options{Window: c.Window, Classes: c.Classes, Aligner: c.Aligner}
}
