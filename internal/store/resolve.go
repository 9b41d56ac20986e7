package store

import (
	"slices"
	"strings"

	"github.com/inodb/vcf-setops/internal/bed"
)

// Resolve splits a chained run of overlapping intervals into disjoint
// sub-intervals. The run must be sorted by start and each interval must
// start at or before the largest end seen before it.
//
// Every start, every end, the base before each later start and the base
// after each earlier end are boundary points; pairing the sorted start
// points with the sorted end points yields sub-intervals that never
// straddle a change in membership. With merge set, a sub-interval carries
// the de-duplicated annotation tokens of every interval covering it.
// Without it, only a sub-interval covered by a single interval keeps that
// interval's annotation.
func Resolve(run []*bed.Interval, merge bool) ([]*bed.Interval, error) {
	if len(run) < 2 {
		return run, nil
	}

	first := run[0]
	runEnd := first.End
	for _, iv := range run[1:] {
		runEnd = max(runEnd, iv.End)
	}

	starts := make(map[int64]struct{}, 2*len(run))
	ends := make(map[int64]struct{}, 2*len(run))
	for _, iv := range run {
		starts[iv.Start] = struct{}{}
		ends[iv.End] = struct{}{}
		if iv.Start > first.Start {
			ends[iv.Start-1] = struct{}{}
		}
		if iv.End < runEnd {
			starts[iv.End+1] = struct{}{}
		}
	}
	startPoints := sortedKeys(starts)
	endPoints := sortedKeys(ends)

	fail := func(reason string) error {
		return &OverlapError{
			Chrom:  first.Chrom,
			Start:  first.Start,
			End:    runEnd,
			Starts: startPoints,
			Ends:   endPoints,
			Reason: reason,
		}
	}
	if len(startPoints) != len(endPoints) {
		return nil, fail("start and end point counts differ")
	}
	if startPoints[0] != first.Start {
		return nil, fail("run is not sorted by start")
	}

	out := make([]*bed.Interval, 0, len(startPoints))
	for i, start := range startPoints {
		end := endPoints[i]
		if end < start || (i > 0 && start != endPoints[i-1]+1) {
			return nil, fail("sub-intervals do not tile the run")
		}
		sub := &bed.Interval{Chrom: first.Chrom, Start: start, End: end}
		covering := coveringIntervals(run, start, end)
		if len(covering) == 0 {
			return nil, fail("sub-interval is not covered by the run")
		}
		sub.Info = annotation(covering, merge)
		out = append(out, sub)
	}
	return out, nil
}

func coveringIntervals(run []*bed.Interval, start, end int64) []*bed.Interval {
	var out []*bed.Interval
	for _, iv := range run {
		if iv.Start <= start && iv.End >= end {
			out = append(out, iv)
		}
	}
	return out
}

func annotation(covering []*bed.Interval, merge bool) string {
	if len(covering) == 1 {
		return covering[0].Info
	}
	if !merge {
		return ""
	}
	var tokens []string
	seen := make(map[string]bool)
	for _, iv := range covering {
		for _, tok := range iv.Tokens() {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	return strings.Join(tokens, ";")
}

func sortedKeys(m map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
