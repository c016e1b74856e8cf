// Package main provides kvbench, a benchmark tool for the dict and
// evloop packages. It shells out to hyperfine for repeatable wall-clock
// timing, the way cmd/tk-bench drives tk.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kvcore/engine/pkg/dict"
)

var (
	errHyperfineNotFound = errors.New("hyperfine not found; install it first")
	errNoHyperfineResult = errors.New("no results in hyperfine output")
)

// Config holds the benchmark driver's configuration.
type Config struct {
	Bin     string
	OutDir  string
	Counts  []int
	Warmup  int
	MinRuns int
}

// HyperfineResultEntry is one command's result inside hyperfine's
// --export-json output.
type HyperfineResultEntry struct {
	Command string  `json:"command"`
	Mean    float64 `json:"mean"`
	Stddev  float64 `json:"stddev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// HyperfineResult is hyperfine's --export-json top-level shape.
type HyperfineResult struct {
	Results []HyperfineResultEntry `json:"results"`
}

// BenchResult is one row of kvbench's own summary output.
type BenchResult struct {
	Label      string  `json:"label"`
	EntryCount int     `json:"entry_count"`
	MeanSecs   float64 `json:"mean_secs"`
	MinSecs    float64 `json:"min_secs"`
	MaxSecs    float64 `json:"max_secs"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// worker mode: `kvbench -op <insert|get|mixed> -count N` runs the
	// workload in-process and exits, so hyperfine can time this process's
	// wall-clock duration directly (mirrors tk-bench timing the tk binary
	// itself rather than a library call).
	if op := workerOp(args); op != "" {
		return runWorker(args)
	}

	return runDriver(args)
}

func workerOp(args []string) string {
	for i, a := range args {
		if a == "-op" || a == "--op" {
			if i+1 < len(args) {
				return args[i+1]
			}
		}

		if after, ok := strings.CutPrefix(a, "--op="); ok {
			return after
		}
	}

	return ""
}

func runWorker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	op := fs.String("op", "insert", "workload: insert|get|mixed")
	count := fs.Int("count", 10000, "number of entries")

	if err := fs.Parse(args); err != nil {
		return err
	}

	d := dict.New[string, int](benchType{})

	switch *op {
	case "insert":
		for i := range *count {
			_ = d.Insert(strconv.Itoa(i), i)
		}

	case "get":
		for i := range *count {
			_ = d.Insert(strconv.Itoa(i), i)
		}

		for i := range *count {
			d.Find(strconv.Itoa(i))
		}

	case "mixed":
		for i := range *count {
			_ = d.Insert(strconv.Itoa(i), i)

			if i%3 == 0 {
				d.Find(strconv.Itoa(i / 2))
			}

			if i%7 == 0 && i > 0 {
				_ = d.Remove(strconv.Itoa(i - 1))
			}
		}

	default:
		return fmt.Errorf("unknown -op %q (want insert|get|mixed)", *op)
	}

	return nil
}

type benchType struct {
	dict.DefaultType[string, int]
}

func (benchType) Hash(k string) uint64      { return dict.SipHashString(k) }
func (benchType) KeyEqual(a, b string) bool { return a == b }

func runDriver(args []string) error {
	cfg := Config{}

	exe, _ := os.Executable()
	cfg.Bin = exe

	fs := flag.NewFlagSet("kvbench", flag.ExitOnError)
	fs.StringVar(&cfg.Bin, "bin", cfg.Bin, "path to the kvbench binary (for worker re-invocation)")
	fs.StringVar(&cfg.OutDir, "out", ".benchmarks", "output directory for JSON summaries")
	countsStr := fs.String("counts", "1000,100000", "comma-separated entry counts to benchmark")
	fs.IntVar(&cfg.Warmup, "warmup", 3, "number of warmup runs")
	fs.IntVar(&cfg.MinRuns, "min-runs", 10, "minimum number of runs")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: kvbench [flags]\n\n")
		fmt.Fprint(os.Stderr, "Benchmarks dict insert/get/mixed workloads via hyperfine.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	for countStr := range strings.SplitSeq(*countsStr, ",") {
		countStr = strings.TrimSpace(countStr)
		if countStr == "" {
			continue
		}

		n, err := strconv.Atoi(countStr)
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", countStr, err)
		}

		cfg.Counts = append(cfg.Counts, n)
	}

	if len(cfg.Counts) == 0 {
		return errors.New("no counts specified")
	}

	if _, err := exec.LookPath("hyperfine"); err != nil {
		return errHyperfineNotFound
	}

	if err := os.MkdirAll(cfg.OutDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	return runHyperfineBench(&cfg)
}

func runHyperfineBench(cfg *Config) error {
	var results []BenchResult

	for _, count := range cfg.Counts {
		for _, op := range []string{"insert", "get", "mixed"} {
			result, err := benchOne(cfg, op, count)
			if err != nil {
				return fmt.Errorf("op=%s count=%d: %w", op, count, err)
			}

			results = append(results, result)
		}
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	outFile := filepath.Join(cfg.OutDir, fmt.Sprintf("kvbench_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	if err := os.WriteFile(outFile, data, 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Fprintf(os.Stderr, "wrote %s (%s/%s)\n", outFile, runtime.GOOS, runtime.GOARCH)

	return nil
}

func benchOne(cfg *Config, op string, count int) (BenchResult, error) {
	tmpFile, err := os.CreateTemp("", "hyperfine-*.json")
	if err != nil {
		return BenchResult{}, fmt.Errorf("creating temp file: %w", err)
	}

	tmpFileName := tmpFile.Name()
	_ = tmpFile.Close()
	defer os.Remove(tmpFileName)

	command := fmt.Sprintf("%s -op %s -count %d", cfg.Bin, op, count)

	hfArgs := []string{
		"-N",
		"--warmup", strconv.Itoa(cfg.Warmup),
		"--min-runs", strconv.Itoa(cfg.MinRuns),
		"--export-json", tmpFileName,
		command,
	}

	cmd := exec.CommandContext(context.Background(), "hyperfine", hfArgs...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return BenchResult{}, fmt.Errorf("hyperfine: %w", err)
	}

	raw, err := os.ReadFile(tmpFileName)
	if err != nil {
		return BenchResult{}, fmt.Errorf("reading hyperfine output: %w", err)
	}

	var hf HyperfineResult
	if err := json.Unmarshal(raw, &hf); err != nil {
		return BenchResult{}, fmt.Errorf("parsing hyperfine output: %w", err)
	}

	if len(hf.Results) == 0 {
		return BenchResult{}, fmt.Errorf("no results for %s: %w", command, errNoHyperfineResult)
	}

	r := hf.Results[0]

	return BenchResult{
		Label:      op,
		EntryCount: count,
		MeanSecs:   r.Mean,
		MinSecs:    r.Min,
		MaxSecs:    r.Max,
	}, nil
}
