package semantic

import "math"

// Curve selects how a raw embedding distance maps to a 0-100 similarity.
// Every curve is monotonically decreasing and maps distance 0 to 100.
type Curve string

const (
	// Inverse maps distance d to 100/(1+d). The default.
	Inverse Curve = "inverse"
	// Exponential maps distance d to 100*exp(-d/scale).
	Exponential Curve = "exponential"
	// Linear maps distance d to 100*(1-d/scale), floored at 0.
	Linear Curve = "linear"
)

// mapScore converts a distance into a similarity clipped to [0,100],
// rounded to two decimals.
func mapScore(distance float64, curve Curve, scale float64) float64 {
	var s float64
	switch curve {
	case Exponential:
		s = 100 * math.Exp(-distance/scale)
	case Linear:
		s = 100 * (1 - distance/scale)
	default:
		s = 100 / (1 + distance)
	}
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return math.Round(s*100) / 100
}
