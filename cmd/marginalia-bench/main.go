// Package main provides the marginalia-bench CLI for measuring cache
// behavior under synthetic reading-assistant traffic.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lecternlabs/marginalia"
	"github.com/lecternlabs/marginalia/benchmark/analysis"
	"github.com/lecternlabs/marginalia/benchmark/replay"
	"github.com/lecternlabs/marginalia/benchmark/reporting"
	"github.com/lecternlabs/marginalia/benchmark/workload"
	"github.com/lecternlabs/marginalia/internal/match/noopmatch"
	"github.com/lecternlabs/marginalia/internal/seed"
	"github.com/lecternlabs/marginalia/internal/tier/memtier"
)

// targets are the hit rates each named mix is expected to reach. A run
// below target exits non-zero so CI can gate on cache regressions.
var targets = map[string]float64{
	"Simple Queries":   0.75,
	"Mixed Complexity": 0.50,
}

var (
	mixName      string
	workloadFile string
	seedVal      int64
	requests     int
	concurrency  int
	genLatency   time.Duration
	outputFormat string
	outputFile   string

	// Cache configuration under test.
	l1Entries  int
	threshold  float64
	noSemantic bool
	l2Tier     string
)

var rootCmd = &cobra.Command{
	Use:   "marginalia-bench",
	Short: "Benchmark the response cache under synthetic traffic",
	Long: `marginalia-bench measures hit rates and latency of the response cache
under deterministic synthetic traffic.

Workloads are generated from named mixes and can be saved to disk so the
same stream can be replayed against different configurations.

Examples:
  # Run the default mix against the default configuration
  marginalia-bench run --mix "Simple Queries"

  # Save a workload, then replay it
  marginalia-bench synth --mix "Mixed Complexity" --output mixed.jsonl.zst
  marginalia-bench run --workload mixed.jsonl.zst --format markdown --output report.md

  # Measure what the semantic matcher is worth
  marginalia-bench compare --mix "Mixed Complexity" --no-semantic`,
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a workload and save it to disk",
	RunE:  runSynth,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a workload and assert its hit-rate target",
	RunE:  runBenchmark,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the configured cache against the defaults",
	RunE:  runCompare,
}

func init() {
	synthCmd.Flags().StringVarP(&mixName, "mix", "m", "Simple Queries", "workload mix to generate")
	synthCmd.Flags().Int64Var(&seedVal, "seed", 42, "workload random seed")
	synthCmd.Flags().IntVarP(&requests, "requests", "n", 2000, "number of requests")
	synthCmd.Flags().StringVarP(&outputFile, "output", "o", "", "corpus file to write (.zst and .gz compress)")
	synthCmd.MarkFlagRequired("output")

	addWorkloadFlags(runCmd)
	addConfigFlags(runCmd)
	runCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, markdown")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")

	addWorkloadFlags(compareCmd)
	addConfigFlags(compareCmd)
	compareCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, markdown")
	compareCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(synthCmd, runCmd, compareCmd)
}

func addWorkloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&mixName, "mix", "m", "Simple Queries", "workload mix to generate")
	cmd.Flags().StringVarP(&workloadFile, "workload", "w", "", "replay a saved workload instead of generating one")
	cmd.Flags().Int64Var(&seedVal, "seed", 42, "workload random seed")
	cmd.Flags().IntVarP(&requests, "requests", "n", 2000, "number of requests when generating")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", replay.DefaultConcurrency, "concurrent readers")
	cmd.Flags().DurationVar(&genLatency, "gen-latency", replay.DefaultGeneratorLatency, "simulated generator latency")
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&l1Entries, "l1-entries", 4096, "in-process tier capacity")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "semantic match threshold")
	cmd.Flags().BoolVar(&noSemantic, "no-semantic", false, "disable the semantic matcher")
	cmd.Flags().StringVar(&l2Tier, "l2", "none", "shared tier: none, memory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSynth(cmd *cobra.Command, args []string) error {
	mix, ok := workload.ByName(mixName)
	if !ok {
		return fmt.Errorf("unknown mix %q; known mixes: %s", mixName, knownMixes())
	}

	records := mix.Generate(seedVal, requests)
	if err := workload.Save(outputFile, mix, seedVal, records); err != nil {
		return err
	}

	fmt.Printf("Wrote %d requests (%s, seed %d) to %s\n", len(records), mix.Name, seedVal, outputFile)
	return nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	records, name, err := loadRecords()
	if err != nil {
		return err
	}

	cfg := replay.Config{
		Name:             configName(),
		CacheOptions:     cacheOptions(),
		Concurrency:      concurrency,
		GeneratorLatency: genLatency,
	}

	sum, err := replay.Run(context.Background(), cfg, records)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	target, hasTarget := targets[name]
	switch outputFormat {
	case "markdown":
		r := reporting.NewMarkdownReport(out)
		r.WriteHeader("Marginalia Cache Benchmark")
		r.WriteMethodology(name, len(records), cfg.Concurrency, cfg.GeneratorLatency)
		r.WriteSummaryTable([]*replay.Summary{sum})
		r.WriteLatencyChart(sum.Name, sum.Latencies())
		r.WriteFooter()
	default:
		r := reporting.NewTextReport(out)
		r.WriteSummary(sum)
		if hasTarget {
			r.WriteTarget(name, sum.HitRate, target)
		}
	}

	if hasTarget && sum.HitRate < target {
		return fmt.Errorf("%s: hit rate %.1f%% below target %.1f%%", name, sum.HitRate*100, target*100)
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	records, name, err := loadRecords()
	if err != nil {
		return err
	}

	ctx := context.Background()
	baseline, err := replay.Run(ctx, replay.Config{
		Name:             "baseline",
		Concurrency:      concurrency,
		GeneratorLatency: genLatency,
	}, records)
	if err != nil {
		return err
	}

	candidate, err := replay.Run(ctx, replay.Config{
		Name:             configName(),
		CacheOptions:     cacheOptions(),
		Concurrency:      concurrency,
		GeneratorLatency: genLatency,
	}, records)
	if err != nil {
		return err
	}

	comp := analysis.CompareRuns(baseline, candidate, 10000, 0.95, seedVal)

	out, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	switch outputFormat {
	case "markdown":
		r := reporting.NewMarkdownReport(out)
		r.WriteHeader("Marginalia Configuration Comparison")
		r.WriteMethodology(name, len(records), concurrency, genLatency)
		r.WriteSummaryTable([]*replay.Summary{baseline, candidate})
		r.WriteComparison(comp)
		r.WriteFooter()
	default:
		r := reporting.NewTextReport(out)
		r.WriteSummary(baseline)
		r.WriteSummary(candidate)
		fmt.Fprintln(out)
		r.WriteComparison(comp)
	}
	return nil
}

// loadRecords returns the workload and the mix name it was built from.
func loadRecords() ([]seed.Record, string, error) {
	if workloadFile != "" {
		records, err := workload.Load(context.Background(), workloadFile)
		if err != nil {
			return nil, "", err
		}
		name := ""
		if man, err := seed.ReadManifest(workloadFile); err == nil {
			name = man.Mix
		}
		return records, name, nil
	}

	mix, ok := workload.ByName(mixName)
	if !ok {
		return nil, "", fmt.Errorf("unknown mix %q; known mixes: %s", mixName, knownMixes())
	}
	return mix.Generate(seedVal, requests), mix.Name, nil
}

func knownMixes() string {
	var names []string
	for _, m := range workload.Mixes() {
		names = append(names, fmt.Sprintf("%q", m.Name))
	}
	return strings.Join(names, ", ")
}

// cacheOptions translates the config flags into cache options.
func cacheOptions() []marginalia.Option {
	opts := []marginalia.Option{
		marginalia.WithL1MaxEntries(l1Entries),
		marginalia.WithSemanticThreshold(threshold),
	}
	if noSemantic {
		opts = append(opts, marginalia.WithMatcher(noopmatch.New()))
	}
	if l2Tier == "memory" {
		opts = append(opts, marginalia.WithRemote(memtier.New(time.Minute)))
	}
	return opts
}

// configName labels the configured cache in reports.
func configName() string {
	var parts []string
	if l1Entries != 4096 {
		parts = append(parts, fmt.Sprintf("l1=%d", l1Entries))
	}
	if threshold != 0.5 {
		parts = append(parts, fmt.Sprintf("threshold=%.2f", threshold))
	}
	if noSemantic {
		parts = append(parts, "no-semantic")
	}
	if l2Tier != "none" {
		parts = append(parts, "l2="+l2Tier)
	}
	if len(parts) == 0 {
		return "defaults"
	}
	return strings.Join(parts, ",")
}

func openOutput() (io.Writer, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
