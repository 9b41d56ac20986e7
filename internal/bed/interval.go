// Package bed reads BED interval files into 1-based, inclusive intervals.
package bed

import (
	"fmt"
	"strings"
)

// Interval is a BED record converted to 1-based, inclusive coordinates.
type Interval struct {
	Chrom string
	Start int64 // 1-based, inclusive
	End   int64 // 1-based, inclusive
	Info  string
}

// Len returns the number of bases covered.
func (iv *Interval) Len() int64 {
	return iv.End - iv.Start + 1
}

// Contains reports whether the 1-based position pos lies inside iv.
func (iv *Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos <= iv.End
}

// Tokens returns the semicolon-separated annotation tokens of Info.
func (iv *Interval) Tokens() []string {
	if iv.Info == "" {
		return nil
	}
	var tokens []string
	for _, tok := range strings.Split(iv.Info, ";") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// String renders the interval back in 0-based, half-open BED form.
func (iv *Interval) String() string {
	if iv.Info == "" {
		return fmt.Sprintf("%s\t%d\t%d", iv.Chrom, iv.Start-1, iv.End)
	}
	return fmt.Sprintf("%s\t%d\t%d\t%s", iv.Chrom, iv.Start-1, iv.End, iv.Info)
}
