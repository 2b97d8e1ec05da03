package main

import (
	"flag"
	"fmt"

	"github.com/spf13/viper"
)

// benchConfig holds the run parameters. Keys match the flag names and the
// config file keys.
type benchConfig struct {
	Sets      int     `mapstructure:"sets"`
	Cols      int     `mapstructure:"cols"`
	Bins      int     `mapstructure:"bins"`
	Code      string  `mapstructure:"code"`
	FFTSize   int     `mapstructure:"fft_size"`
	Stage     string  `mapstructure:"stage"`
	Row       int     `mapstructure:"row"`
	Backend   string  `mapstructure:"backend"`
	Workers   int     `mapstructure:"workers"`
	Engine    string  `mapstructure:"engine"`
	Seed      uint64  `mapstructure:"seed"`
	Targets   int     `mapstructure:"targets"`
	Plot      string  `mapstructure:"plot"`
	Tolerance float64 `mapstructure:"tolerance"`
}

func registerFlags(fs *flag.FlagSet) *string {
	fs.Int("sets", 4, "pulse-sets")
	fs.Int("cols", 64, "pulses per set")
	fs.Int("bins", 512, "range bins per pulse")
	fs.String("code", "+++++--++-+-+", "phase code, as signs or comma-separated values")
	fs.Int("fft_size", 64, "transform size per range row")
	fs.String("stage", "full", "stage: full, phasecode, transform, power, integration")
	fs.Int("row", 0, "range row inspected by partial stages")
	fs.String("backend", "both", "backend: cpu, gpu, both")
	fs.Int("workers", 0, "CPU worker pool size (0 = GOMAXPROCS)")
	fs.String("engine", "algofft", "CPU transform engine: algofft, gonum")
	fs.Uint64("seed", 1, "rng seed")
	fs.Int("targets", 3, "synthetic point targets per pulse")
	fs.String("plot", "", "write the timing plot to this file (png, svg, pdf)")
	fs.Float64("tolerance", 1e-5, "maximum relative error between backends")

	return fs.String("config", "", "read parameters from a TOML, YAML or JSON file")
}

// loadConfig resolves the run parameters. Precedence, lowest first: flag
// defaults, the config file, flags set on the command line.
func loadConfig(fs *flag.FlagSet, path string) (benchConfig, error) {
	v := viper.New()

	fs.VisitAll(func(f *flag.Flag) {
		if f.Name != "config" {
			v.SetDefault(f.Name, f.DefValue)
		}
	})

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return benchConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			v.Set(f.Name, f.Value.String())
		}
	})

	var cfg benchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return benchConfig{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Sets < 1 || cfg.Cols < 1 || cfg.Bins < 1 {
		return benchConfig{}, fmt.Errorf("invalid tensor shape %dx%dx%d", cfg.Sets, cfg.Cols, cfg.Bins)
	}

	switch cfg.Backend {
	case "cpu", "gpu", "both":
	default:
		return benchConfig{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return cfg, nil
}
