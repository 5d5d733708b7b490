package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/sink"
)

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntsConfig(cmd *cobra.Command, name string, target *[]int, value []int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]int(nil), value...)
}

func validateSettings(s settings) error {
	if s.dataDir == "" {
		return fmt.Errorf("--data-dir must not be empty")
	}
	if s.dbPath == "" {
		return fmt.Errorf("--db must not be empty")
	}
	if s.retentionMs < 0 {
		return fmt.Errorf("--retention-ms must be >= 0")
	}
	if s.endpoint != "" && !sink.IsHTTPEndpoint(s.endpoint) {
		return fmt.Errorf("--endpoint must start with http:// or https://")
	}
	return validateConfig(s.task, 0)
}

// validateConfig checks timing and plan settings. A positive letters value
// also checks every set size against the loaded letter pool.
func validateConfig(cfg model.Config, letters int) error {
	positive := []struct {
		name  string
		value int
	}{
		{"--letter-ms", cfg.LetterMs},
		{"--calib-min-ms", cfg.CalibMinMs},
		{"--calib-max-ms", cfg.CalibMaxMs},
		{"--calib-trials", cfg.MathTrainTrials},
		{"--main-series-per-size", cfg.MainSeriesPerSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0", p.name)
		}
	}
	nonNegative := []struct {
		name  string
		value int
	}{
		{"--post-letter-blank-ms", cfg.PostLetterBlankMs},
		{"--inter-series-break-ms", cfg.InterSeriesBreakMs},
		{"--transition-ms", cfg.TransitionMs},
		{"--calib-pause-ms", cfg.CalibPauseMs},
		{"--mixed-series", cfg.MixedTrainSeries},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			return fmt.Errorf("%s must be >= 0", p.name)
		}
	}
	if cfg.CalibMinMs > cfg.CalibMaxMs {
		return fmt.Errorf("--calib-min-ms must not exceed --calib-max-ms")
	}
	if len(cfg.MainSetSizes) == 0 {
		return fmt.Errorf("--main-set-sizes must not be empty")
	}
	sizes := map[string][]int{
		"--letter-train-sizes": cfg.LetterTrainSizes,
		"--main-set-sizes":     cfg.MainSetSizes,
	}
	if cfg.MixedTrainSeries > 0 {
		sizes["--mixed-set-size"] = []int{cfg.MixedTrainSetSize}
	}
	for name, values := range sizes {
		for _, n := range values {
			if n <= 0 {
				return fmt.Errorf("%s values must be > 0", name)
			}
			if letters > 0 && n > letters {
				return fmt.Errorf("%s value %d exceeds the letter pool of %d", name, n, letters)
			}
		}
	}
	return nil
}
