// Package reporting renders benchmark results as text and Markdown.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/benchmark/analysis"
	"github.com/lecternlabs/marginalia/benchmark/replay"
)

// MarkdownReport writes benchmark results as a Markdown document.
type MarkdownReport struct {
	w io.Writer
}

// NewMarkdownReport creates a Markdown report writer.
func NewMarkdownReport(w io.Writer) *MarkdownReport {
	return &MarkdownReport{w: w}
}

// WriteHeader writes the report title.
func (r *MarkdownReport) WriteHeader(title string) {
	fmt.Fprintf(r.w, "# %s\n\n", title)
	fmt.Fprintf(r.w, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
}

// WriteMethodology writes the run setup section.
func (r *MarkdownReport) WriteMethodology(mix string, requests, concurrency int, genLatency time.Duration) {
	fmt.Fprintln(r.w, "## Methodology")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Workload:** %s\n", mix)
	fmt.Fprintf(r.w, "- **Requests:** %d\n", requests)
	fmt.Fprintf(r.w, "- **Concurrency:** %d readers\n", concurrency)
	fmt.Fprintf(r.w, "- **Simulated generator latency:** %s per call\n", genLatency)
	fmt.Fprintln(r.w, "- **Statistical tests:** Mann-Whitney U, Cohen's d, bootstrap CI")
	fmt.Fprintln(r.w)
}

// WriteSummaryTable writes one row per run.
func (r *MarkdownReport) WriteSummaryTable(sums []*replay.Summary) {
	fmt.Fprintln(r.w, "## Summary")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Run | Requests | Hit Rate | L1 | L2 | Semantic | Generated | Gen Calls | p50 ms | p90 ms | p99 ms |")
	fmt.Fprintln(r.w, "|-----|----------|----------|----|----|----------|-----------|-----------|--------|--------|--------|")

	for _, s := range sums {
		fmt.Fprintf(r.w, "| %s | %d | %.1f%% | %d | %d | %d | %d | %d | %.2f | %.2f | %.2f |\n",
			s.Name, s.Requests, s.HitRate*100,
			s.ByTier[marginalia.TierL1], s.ByTier[marginalia.TierL2],
			s.ByTier[marginalia.TierSemantic], s.ByTier[marginalia.TierGenerated],
			s.GeneratorCalls, s.P50, s.P90, s.P99)
	}
	fmt.Fprintln(r.w)
}

// WriteComparison writes the statistical comparison of two runs.
func (r *MarkdownReport) WriteComparison(c *analysis.RunComparison) {
	fmt.Fprintf(r.w, "## %s vs %s\n\n", c.NameA, c.NameB)

	fmt.Fprintln(r.w, "### Latency")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "| Metric | %s | %s |\n", c.NameA, c.NameB)
	fmt.Fprintf(r.w, "|--------|%s|%s|\n",
		strings.Repeat("-", len(c.NameA)+2), strings.Repeat("-", len(c.NameB)+2))
	fmt.Fprintf(r.w, "| Mean ms | %.2f | %.2f |\n", c.StatsA.Mean, c.StatsB.Mean)
	fmt.Fprintf(r.w, "| Median ms | %.2f | %.2f |\n", c.StatsA.Median, c.StatsB.Median)
	fmt.Fprintf(r.w, "| p99 ms | %.2f | %.2f |\n", c.StatsA.P99, c.StatsB.P99)
	fmt.Fprintf(r.w, "| Std dev | %.2f | %.2f |\n", c.StatsA.StdDev, c.StatsB.StdDev)
	fmt.Fprintf(r.w, "| Hit rate | %.1f%% | %.1f%% |\n", c.HitRateA*100, c.HitRateB*100)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Statistical Analysis")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Mann-Whitney U:** %.2f (z=%.2f, p=%.4f)\n",
		c.MannWhitney.U, c.MannWhitney.Z, c.MannWhitney.PValue)
	fmt.Fprintf(r.w, "- **Effect size (Cohen's d):** %.2f (%s)\n",
		c.EffectSize.CohensD, c.EffectSize.Interpretation)
	fmt.Fprintf(r.w, "- **%.0f%% CI for mean difference:** [%.2f, %.2f] ms\n",
		c.CI.Confidence*100, c.CI.LowerBound, c.CI.UpperBound)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Conclusion")
	fmt.Fprintln(r.w)
	if c.Confident {
		fmt.Fprintf(r.w, "**%s** is faster with statistical significance (p < 0.05, effect size: %s).\n",
			c.Winner, c.EffectSize.Interpretation)
	} else {
		fmt.Fprintln(r.w, "No statistically significant latency difference between the runs (p >= 0.05).")
	}
	fmt.Fprintln(r.w)
}

// WriteLatencyChart writes an ASCII latency histogram.
func (r *MarkdownReport) WriteLatencyChart(name string, latencies []float64) {
	fmt.Fprintf(r.w, "### %s Latency Distribution\n\n", name)
	fmt.Fprintln(r.w, "```")

	buckets, lo, width := histogram(latencies, 10)
	max := 0
	for _, n := range buckets {
		if n > max {
			max = n
		}
	}

	const barWidth = 40
	for i, n := range buckets {
		bar := 0
		if max > 0 {
			bar = n * barWidth / max
		}
		from := lo + float64(i)*width
		fmt.Fprintf(r.w, "%7.2f-%7.2f ms │ %s %d\n",
			from, from+width, strings.Repeat("█", bar), n)
	}

	fmt.Fprintln(r.w, "```")
	fmt.Fprintln(r.w)
}

// histogram buckets values into n equal-width bins and returns the bins,
// the lower bound and the bin width.
func histogram(values []float64, n int) ([]int, float64, float64) {
	buckets := make([]int, n)
	if len(values) == 0 {
		return buckets, 0, 1
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	width := (hi - lo) / float64(n)

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		buckets[idx]++
	}
	return buckets, lo, width
}

// WriteFooter closes the report.
func (r *MarkdownReport) WriteFooter() {
	fmt.Fprintln(r.w, "---")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "*Report generated by marginalia-bench*")
}
