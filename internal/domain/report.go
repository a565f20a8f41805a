package domain

import "time"

// Report is the aggregate result of one check. All three scores are bounded
// in [0,100] and defined even when no matches exist (degenerate case: zero).
type Report struct {
	OverallSimilarity float64
	LexicalBreakdown  float64
	SemanticBreakdown float64
	Duration          time.Duration
	Matches           []Match
	Message           string
}
