package store

import "fmt"

// OverlapError reports an overlap reconstruction whose computed start and
// end points do not pair up. It signals a resolver bug or unsorted input.
type OverlapError struct {
	Chrom  string
	Start  int64
	End    int64
	Starts []int64
	Ends   []int64
	Reason string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlap reconstruction failed on %s:%d-%d: %s (start points %v, end points %v)",
		e.Chrom, e.Start, e.End, e.Reason, e.Starts, e.Ends)
}

// OrderError reports input that is not sorted by reference sequence and
// position.
type OrderError struct {
	Source  string
	Chrom   string
	Pos     int64
	Message string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("%s: unsorted input at %s:%d: %s", e.Source, e.Chrom, e.Pos, e.Message)
}
