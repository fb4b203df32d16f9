package reporting

import (
	"fmt"
	"io"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/benchmark/analysis"
	"github.com/lecternlabs/marginalia/benchmark/replay"
)

// TextReport writes benchmark results as plain terminal output.
type TextReport struct {
	w io.Writer
}

// NewTextReport creates a text report writer.
func NewTextReport(w io.Writer) *TextReport {
	return &TextReport{w: w}
}

// WriteSummary writes one run in a few lines.
func (r *TextReport) WriteSummary(s *replay.Summary) {
	served := s.Requests - s.Errors

	fmt.Fprintf(r.w, "%s\n", s.Name)
	fmt.Fprintf(r.w, "  requests:  %d", s.Requests)
	if s.Errors > 0 {
		fmt.Fprintf(r.w, " (%d errors)", s.Errors)
	}
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "  hit rate:  %.1f%% (l1 %s, l2 %s, semantic %s)\n",
		s.HitRate*100,
		tierPct(s, marginalia.TierL1, served),
		tierPct(s, marginalia.TierL2, served),
		tierPct(s, marginalia.TierSemantic, served))
	fmt.Fprintf(r.w, "  generated: %d requests, %d generator calls, %d coalesced\n",
		s.ByTier[marginalia.TierGenerated], s.GeneratorCalls, s.Coalesced)
	fmt.Fprintf(r.w, "  latency:   p50 %.2fms, p90 %.2fms, p99 %.2fms\n", s.P50, s.P90, s.P99)
	if s.Elapsed > 0 {
		fmt.Fprintf(r.w, "  elapsed:   %s (%.0f req/s)\n",
			s.Elapsed.Round(s.Elapsed/1000), float64(s.Requests)/s.Elapsed.Seconds())
	}
}

// WriteComparison writes the comparison summary.
func (r *TextReport) WriteComparison(c *analysis.RunComparison) {
	fmt.Fprintln(r.w, c.Summary())
}

// WriteTarget writes a pass or fail line for an asserted hit-rate target.
func (r *TextReport) WriteTarget(name string, hitRate, target float64) {
	if hitRate >= target {
		fmt.Fprintf(r.w, "PASS %s: hit rate %.1f%% >= target %.1f%%\n", name, hitRate*100, target*100)
		return
	}
	fmt.Fprintf(r.w, "FAIL %s: hit rate %.1f%% < target %.1f%%\n", name, hitRate*100, target*100)
}

func tierPct(s *replay.Summary, tier marginalia.Tier, served int) string {
	if served == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(s.ByTier[tier])/float64(served)*100)
}
