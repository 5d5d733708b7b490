// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Session SessionConfig `toml:"session"`
	Data    DataConfig    `toml:"data"`
	Sink    SinkConfig    `toml:"sink"`
}

// SessionConfig maps task timing and plan settings.
type SessionConfig struct {
	Participant        *string `toml:"participant"`
	LetterMs           *int    `toml:"letter-ms"`
	PostLetterBlankMs  *int    `toml:"post-letter-blank-ms"`
	InterSeriesBreakMs *int    `toml:"inter-series-break-ms"`
	TransitionMs       *int    `toml:"transition-ms"`
	CalibMinMs         *int    `toml:"calib-min-ms"`
	CalibMaxMs         *int    `toml:"calib-max-ms"`
	CalibPauseMs       *int    `toml:"calib-pause-ms"`
	CalibTrials        *int    `toml:"calib-trials"`
	LetterTrainSizes   []int   `toml:"letter-train-sizes"`
	MixedSeries        *int    `toml:"mixed-series"`
	MixedSetSize       *int    `toml:"mixed-set-size"`
	MainSetSizes       []int   `toml:"main-set-sizes"`
	MainSeriesPerSize  *int    `toml:"main-series-per-size"`
}

// DataConfig maps stimulus and storage locations.
type DataConfig struct {
	Dir    *string `toml:"dir"`
	DBPath *string `toml:"db"`
	Log    *string `toml:"log"`
}

// SinkConfig maps result delivery settings.
type SinkConfig struct {
	Endpoint    *string `toml:"endpoint"`
	HostOut     *string `toml:"host-out"`
	RetentionMs *int    `toml:"retention-ms"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
