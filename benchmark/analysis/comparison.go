package analysis

import (
	"fmt"

	"github.com/lecternlabs/marginalia/benchmark/replay"
)

// RunComparison is a full statistical comparison of two replay runs over
// the same workload.
type RunComparison struct {
	NameA, NameB       string
	StatsA, StatsB     *DescriptiveStats
	HitRateA, HitRateB float64
	MannWhitney        *MannWhitneyResult
	EffectSize         *EffectSize
	CI                 *BootstrapResult

	// Winner is the run with lower mean latency, or "tie".
	Winner string

	// Confident is true when the latency difference is statistically
	// significant.
	Confident bool
}

// CompareRuns compares two runs on their per-request latencies.
func CompareRuns(a, b *replay.Summary, bootstrapIterations int, confidence float64, seed int64) *RunComparison {
	latA := a.Latencies()
	latB := b.Latencies()

	statsA := Describe(latA)
	statsB := Describe(latB)
	mw := MannWhitneyU(latA, latB)

	winner := "tie"
	switch {
	case statsA.Mean < statsB.Mean:
		winner = a.Name
	case statsB.Mean < statsA.Mean:
		winner = b.Name
	}

	return &RunComparison{
		NameA:       a.Name,
		NameB:       b.Name,
		StatsA:      statsA,
		StatsB:      statsB,
		HitRateA:    a.HitRate,
		HitRateB:    b.HitRate,
		MannWhitney: mw,
		EffectSize:  ComputeEffectSize(latA, latB),
		CI:          BootstrapCI(latA, latB, bootstrapIterations, confidence, seed),
		Winner:      winner,
		Confident:   winner != "tie" && mw.Significant,
	}
}

// Summary returns a human-readable account of the comparison.
func (c *RunComparison) Summary() string {
	sig := "not statistically significant"
	if c.MannWhitney.Significant {
		sig = fmt.Sprintf("statistically significant (p=%.4f)", c.MannWhitney.PValue)
	}

	return fmt.Sprintf(
		"%s vs %s:\n"+
			"  %s: mean=%.2fms p99=%.2fms hit rate=%.1f%%\n"+
			"  %s: mean=%.2fms p99=%.2fms hit rate=%.1f%%\n"+
			"  Mean difference: %.2fms (CI [%.2f, %.2f])\n"+
			"  Effect size: %.2f (%s)\n"+
			"  Result: %s, %s",
		c.NameA, c.NameB,
		c.NameA, c.StatsA.Mean, c.StatsA.P99, c.HitRateA*100,
		c.NameB, c.StatsB.Mean, c.StatsB.P99, c.HitRateB*100,
		c.StatsA.Mean-c.StatsB.Mean, c.CI.LowerBound, c.CI.UpperBound,
		c.EffectSize.CohensD, c.EffectSize.Interpretation,
		c.Winner, sig,
	)
}
