// Package analysis provides statistical comparison of benchmark runs.
package analysis

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MannWhitneyResult is the outcome of a Mann-Whitney U test.
type MannWhitneyResult struct {
	U           float64
	Z           float64 // normal approximation
	PValue      float64 // two-tailed
	Significant bool    // p < 0.05
}

// MannWhitneyU tests whether two latency samples come from different
// distributions. It is non-parametric, which matters here: cache latencies
// are sharply bimodal (hits vs generations), so mean-based tests mislead.
func MannWhitneyU(a, b []float64) *MannWhitneyResult {
	na := float64(len(a))
	nb := float64(len(b))
	if na == 0 || nb == 0 {
		return &MannWhitneyResult{}
	}

	type obs struct {
		value float64
		fromA bool
	}
	all := make([]obs, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, obs{v, true})
	}
	for _, v := range b {
		all = append(all, obs{v, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Rank with ties sharing their average rank.
	ranks := make([]float64, len(all))
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].value == all[i].value {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = avg
		}
		i = j
	}

	var rankSumA float64
	for i, o := range all {
		if o.fromA {
			rankSumA += ranks[i]
		}
	}

	ua := rankSumA - na*(na+1)/2
	ub := na*nb - ua
	u := math.Min(ua, ub)

	mean := na * nb / 2
	sigma := math.Sqrt(na * nb * (na + nb + 1) / 12)
	var z float64
	if sigma > 0 {
		z = (u - mean) / sigma
	}
	p := 2 * normalCDF(-math.Abs(z))

	return &MannWhitneyResult{U: u, Z: z, PValue: p, Significant: p < 0.05}
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// EffectSize quantifies how large a latency difference is, independent of
// sample size.
type EffectSize struct {
	CohensD        float64
	Interpretation string // negligible, small, medium, large
}

// ComputeEffectSize computes Cohen's d with a pooled standard deviation.
func ComputeEffectSize(a, b []float64) *EffectSize {
	if len(a) == 0 || len(b) == 0 {
		return &EffectSize{Interpretation: "undefined"}
	}

	meanA := stat.Mean(a, nil)
	meanB := stat.Mean(b, nil)
	sdA := stat.StdDev(a, nil)
	sdB := stat.StdDev(b, nil)

	na := float64(len(a))
	nb := float64(len(b))
	pooled := math.Sqrt(((na-1)*sdA*sdA + (nb-1)*sdB*sdB) / (na + nb - 2))

	var d float64
	if pooled > 0 {
		d = (meanA - meanB) / pooled
	}
	return &EffectSize{CohensD: d, Interpretation: interpretCohensD(math.Abs(d))}
}

func interpretCohensD(d float64) string {
	switch {
	case d < 0.2:
		return "negligible"
	case d < 0.5:
		return "small"
	case d < 0.8:
		return "medium"
	default:
		return "large"
	}
}

// BootstrapResult is a confidence interval for the mean latency difference.
type BootstrapResult struct {
	MeanDiff   float64
	LowerBound float64
	UpperBound float64
	Confidence float64
}

// BootstrapCI estimates a confidence interval for mean(a) - mean(b) by
// resampling with replacement. The seed makes reruns reproducible.
func BootstrapCI(a, b []float64, iterations int, confidence float64, seed int64) *BootstrapResult {
	if len(a) == 0 || len(b) == 0 || iterations < 1 {
		return &BootstrapResult{Confidence: confidence}
	}

	rng := rand.New(rand.NewSource(seed))
	diffs := make([]float64, iterations)
	scratchA := make([]float64, len(a))
	scratchB := make([]float64, len(b))
	for i := range diffs {
		resample(rng, a, scratchA)
		resample(rng, b, scratchB)
		diffs[i] = stat.Mean(scratchA, nil) - stat.Mean(scratchB, nil)
	}
	sort.Float64s(diffs)

	alpha := 1 - confidence
	lo := int(alpha / 2 * float64(iterations))
	hi := int((1 - alpha/2) * float64(iterations))
	if lo < 0 {
		lo = 0
	}
	if hi >= iterations {
		hi = iterations - 1
	}

	return &BootstrapResult{
		MeanDiff:   stat.Mean(a, nil) - stat.Mean(b, nil),
		LowerBound: diffs[lo],
		UpperBound: diffs[hi],
		Confidence: confidence,
	}
}

func resample(rng *rand.Rand, src, dst []float64) {
	for i := range dst {
		dst[i] = src[rng.Intn(len(src))]
	}
}

// DescriptiveStats summarizes one latency sample in milliseconds.
type DescriptiveStats struct {
	N      int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	P90    float64
	P99    float64
}

// Describe computes descriptive statistics for a sample.
func Describe(sample []float64) *DescriptiveStats {
	if len(sample) == 0 {
		return &DescriptiveStats{}
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	return &DescriptiveStats{
		N:      len(sample),
		Mean:   stat.Mean(sample, nil),
		Median: sorted[len(sorted)/2],
		StdDev: stat.StdDev(sample, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P90:    percentile(sorted, 90),
		P99:    percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
