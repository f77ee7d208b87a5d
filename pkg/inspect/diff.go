package inspect

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DiffContext is the number of context lines around each hunk.
const DiffContext = 3

// Diff returns a unified diff between the plain text renderings of two
// summaries, or "" when they render identically.
func Diff(aName, bName string, a, b *Summary) (string, error) {
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(Text(a, PlainStyles())),
		B:        splitLinesKeepNL(Text(b, PlainStyles())),
		FromFile: aName,
		ToFile:   bName,
		Context:  DiffContext,
	}
	return difflib.GetUnifiedDiffString(u)
}

// splitLinesKeepNL keeps the newline on every line so hunks reassemble
// byte for byte.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}
