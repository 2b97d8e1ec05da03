// Command pulsebench decodes a synthetic radar tensor on the CPU and GPU
// backends, prints the per-phase timing summary of each run and, when both
// ran, cross-validates their outputs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	algopulse "github.com/cwbudde/algo-pulse"
	"github.com/cwbudde/algo-pulse/gpu"
	"github.com/cwbudde/algo-pulse/internal/report"
)

// errTolerance marks a cross-validation failure; main exits with status 2.
var errTolerance = errors.New("backends disagree beyond tolerance")

type backendRun struct {
	name string
	cfg  *algopulse.DecodingConfig
	res  *algopulse.Result
}

func main() {
	configPath := registerFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := loadConfig(flag.CommandLine, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsebench: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "pulsebench: %v\n", err)
		if errors.Is(err, errTolerance) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cfg benchConfig) error {
	code, err := algopulse.ParsePhaseCode(cfg.Code)
	if err != nil {
		return err
	}

	stage, err := algopulse.ParseStage(cfg.Stage)
	if err != nil {
		return err
	}

	engine, err := algopulse.ParseEngine(cfg.Engine)
	if err != nil {
		return err
	}

	samples, err := synthesize(cfg, code)
	if err != nil {
		return err
	}

	fmt.Printf("tensor=%dx%dx%d code=%s (L=%d) fft=%d stage=%s seed=%d\n",
		cfg.Sets, cfg.Cols, cfg.Bins, code, len(code), cfg.FFTSize, stage, cfg.Seed)

	var decoders []algopulse.Decoder
	if cfg.Backend == "cpu" || cfg.Backend == "both" {
		decoders = append(decoders, algopulse.NewCPUDecoder(algopulse.CPUOptions{
			Workers: cfg.Workers,
			Engine:  engine,
		}))
	}
	if cfg.Backend == "gpu" || cfg.Backend == "both" {
		registerGPUBackend()

		d, err := gpu.NewDecoder(gpu.DecoderOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = d.Close() }()

		decoders = append(decoders, d)
	}

	runs := make([]backendRun, 0, len(decoders))
	for _, d := range decoders {
		if _, err := d.Init(); err != nil {
			return fmt.Errorf("%s init: %w", d.Name(), err)
		}

		dc := &algopulse.DecodingConfig{
			Stage:         stage,
			InspectRow:    cfg.Row,
			TransformSize: cfg.FFTSize,
		}

		res, err := d.Decode(samples, code, dc)
		if err != nil {
			return fmt.Errorf("%s decode: %w", d.Name(), err)
		}

		runs = append(runs, backendRun{name: d.Name(), cfg: dc, res: res})
	}

	printRuns(runs)

	if cfg.Plot != "" {
		for _, r := range runs {
			path := cfg.Plot
			if len(runs) > 1 {
				path = suffixPath(path, r.name)
			}

			err := report.PlotTimings(r.res.Timing, r.cfg.BackendName+" "+stage.String(), path)
			if errors.Is(err, report.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}

			fmt.Printf("plot: %s\n", path)
		}
	}

	if len(runs) == 2 {
		return crossValidate(runs[0], runs[1], cfg.Tolerance)
	}

	return nil
}

// synthesize builds a noise tensor with cfg.Targets coded echoes per pulse.
func synthesize(cfg benchConfig, code algopulse.PhaseCode) (*algopulse.SampleTensor, error) {
	samples, err := algopulse.NewSampleTensor(cfg.Sets, cfg.Cols, cfg.Bins)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed*0x9e3779b97f4a7c15+1))

	for i := range samples.Data {
		samples.Data[i] = complex(float32(0.1*rng.NormFloat64()), float32(0.1*rng.NormFloat64()))
	}

	for set := range cfg.Sets {
		for col := range cfg.Cols {
			series := samples.Series(set, col)
			for range cfg.Targets {
				at := rng.IntN(cfg.Bins)
				amp := complex64(complex(1+rng.Float64(), 0))
				for k, chip := range code {
					if at+k >= len(series) {
						break
					}
					series[at+k] += amp * complex(chip, 0)
				}
			}
		}
	}

	return samples, nil
}

func printRuns(runs []backendRun) {
	fmt.Printf("\n%-14s  %-28s  %7s  %12s", "backend", "device", "threads", "elapsed")
	for p := range algopulse.NumPhases - 1 {
		fmt.Printf("  %12s", algopulse.Phase(p))
	}
	fmt.Println()

	for _, r := range runs {
		diag := r.res.Timing.Summary()

		fmt.Printf("%-14s  %-28s  %7d  %12s", r.cfg.BackendName, r.cfg.DeviceName, r.cfg.Threads, r.cfg.Elapsed)
		for p := range algopulse.NumPhases - 1 {
			fmt.Printf("  %10.1fus", diag.Phase(algopulse.Phase(p)).Mean()*1e6)
		}
		fmt.Println()
	}
}

func crossValidate(a, b backendRun, tol float64) error {
	var (
		cmp  algopulse.Comparison
		what string
		err  error
	)

	if a.res.Intermediate != nil && b.res.Intermediate != nil {
		what = "intermediate row " + fmt.Sprint(a.res.Intermediate.Row)
		cmp, err = algopulse.CompareIntermediate(a.res.Intermediate, b.res.Intermediate)
	} else {
		what = "decoded tensor"
		cmp, err = algopulse.CompareDecoded(a.res.Decoded, b.res.Decoded)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%s vs %s, %s: %s tol=%g\n", a.cfg.BackendName, b.cfg.BackendName, what, cmp, tol)

	if !cmp.Within(tol) {
		return fmt.Errorf("%w: %s", errTolerance, cmp)
	}

	fmt.Println("OK")

	return nil
}

func suffixPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}
