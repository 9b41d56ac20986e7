package merge

import (
	"errors"
	"fmt"

	"github.com/inodb/vcf-setops/internal/vcf"
)

var (
	// ErrSampleMismatch reports two VCF inputs with different sample
	// columns.
	ErrSampleMismatch = errors.New("sample sets differ")
	// ErrStreamDesync reports a comparison between records on different
	// reference sequences. The join loops align both streams on one
	// sequence before comparing, so it only surfaces if that invariant
	// breaks.
	ErrStreamDesync = errors.New("streams desynchronized")
)

// InfoTypeError reports an INFO or FORMAT key declared with different
// types by two inputs that are being merged.
type InfoTypeError struct {
	Kind  string // INFO or FORMAT
	ID    string
	TypeA string
	TypeB string
}

func (e *InfoTypeError) Error() string {
	return fmt.Sprintf("%s key %s declared as %s and %s", e.Kind, e.ID, e.TypeA, e.TypeB)
}

func (e *InfoTypeError) Unwrap() error { return vcf.ErrHeaderInconsistency }
