// edgeauth-perfcheck compares two `go test -bench` outputs and fails when a tracked
// hot-path benchmark regressed past the threshold. Medians are compared, so run
// both sides with -count > 1.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const defaultThreshold = 0.30

// defaultTracked covers the per-request paths: identity resolution on both credential
// types and the counter increment every resolution pays for.
var defaultTracked = []string{
	"BenchmarkResolveBearer:ns/op,allocs/op",
	"BenchmarkResolveSessionCached:ns/op,allocs/op",
	"BenchmarkMetricsIncParallel:ns/op",
}

type sampleSet map[string]map[string][]float64

type comparison struct {
	benchmark, metric   string
	baseline, candidate float64
	delta               float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
		tracked       []string
	)

	flags := pflag.NewFlagSet("edgeauth-perfcheck", pflag.ExitOnError)
	flags.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flags.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flags.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flags.StringArrayVar(&tracked, "track", defaultTracked, "benchmark and units to compare, as Name:unit,unit")
	_ = flags.Parse(os.Args[1:])

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "--baseline and --candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "--threshold must be >= 0")
		os.Exit(2)
	}

	spec, err := parseTracked(tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--track: %v\n", err)
		os.Exit(2)
	}

	baseline, err := parseBenchmarkFile(baselinePath, spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath, spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, failures := compare(spec, baseline, candidate, threshold)
	fmt.Println("benchmark metric baseline candidate delta")
	for _, r := range results {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

func parseTracked(entries []string) (map[string][]string, error) {
	out := make(map[string][]string, len(entries))
	for _, entry := range entries {
		name, units, ok := strings.Cut(entry, ":")
		if !ok || name == "" || units == "" {
			return nil, fmt.Errorf("malformed entry %q", entry)
		}
		out[name] = append(out[name], strings.Split(units, ",")...)
	}
	return out, nil
}

func compare(spec map[string][]string, baseline, candidate sampleSet, threshold float64) ([]comparison, []string) {
	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		results  []comparison
		failures []string
	)
	for _, name := range names {
		for _, metric := range spec[name] {
			base, cand := baseline[name][metric], candidate[name][metric]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, metric))
				continue
			}

			bm, cm := median(base), median(cand)
			if bm <= 0 {
				// allocs/op of zero stays a hard floor.
				if cm > 0 {
					failures = append(failures, fmt.Sprintf("%s %s grew from zero to %.3f", name, metric, cm))
				}
				results = append(results, comparison{benchmark: name, metric: metric, baseline: bm, candidate: cm})
				continue
			}

			delta := (cm - bm) / bm
			results = append(results, comparison{benchmark: name, metric: metric, baseline: bm, candidate: cm, delta: delta})
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, metric, delta*100, threshold*100))
			}
		}
	}
	return results, failures
}

func parseBenchmarkFile(path string, spec map[string][]string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseBenchmarks(file, spec)
}

func parseBenchmarks(r io.Reader, spec map[string][]string) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := spec[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	return samples, scanner.Err()
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
