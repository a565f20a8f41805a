package check

import (
	"math"
	"sort"
)

// Aggregate selects how per-match similarities collapse into one
// channel breakdown.
type Aggregate string

const (
	// AggregateMax takes the single strongest match per channel.
	AggregateMax Aggregate = "max"
	// AggregateMeanTopN averages the N strongest matches per channel.
	AggregateMeanTopN Aggregate = "mean_top_n"
)

// Policy holds the score fusion settings. Weights must sum to 1.0;
// config validation enforces this before a Policy is built.
type Policy struct {
	WeightLexical  float64
	WeightSemantic float64
	Aggregate      Aggregate
	TopN           int
}

// Fuse collapses per-match similarities into the two channel breakdowns
// and the weighted overall score. All three results are on the 0-100
// scale, rounded to two decimals.
func (p Policy) Fuse(lexScores, semScores []float64) (overall, lexical, semantic float64) {
	lexical = p.aggregate(lexScores)
	semantic = p.aggregate(semScores)
	overall = round2(p.WeightLexical*lexical + p.WeightSemantic*semantic)
	return overall, lexical, semantic
}

func (p Policy) aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	switch p.Aggregate {
	case AggregateMeanTopN:
		sorted := make([]float64, len(scores))
		copy(sorted, scores)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

		n := p.TopN
		if n <= 0 || n > len(sorted) {
			n = len(sorted)
		}
		var sum float64
		for _, s := range sorted[:n] {
			sum += s
		}
		return round2(sum / float64(n))
	default:
		best := scores[0]
		for _, s := range scores[1:] {
			if s > best {
				best = s
			}
		}
		return round2(best)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
