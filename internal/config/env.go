package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds settings read from AOSPAN_* environment variables.
type EnvConfig struct {
	Participant *string `env:"AOSPAN_PARTICIPANT"`
	DataDir     *string `env:"AOSPAN_DATA_DIR"`
	DBPath      *string `env:"AOSPAN_DB"`
	Endpoint    *string `env:"AOSPAN_ENDPOINT"`
	HostOut     *string `env:"AOSPAN_HOST_OUT"`
}

// ParseEnv loads EnvConfig from the process environment.
func ParseEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Merge returns fc with every variable set in ec taking precedence.
func (ec EnvConfig) Merge(fc FileConfig) FileConfig {
	if ec.Participant != nil {
		fc.Session.Participant = ec.Participant
	}
	if ec.DataDir != nil {
		fc.Data.Dir = ec.DataDir
	}
	if ec.DBPath != nil {
		fc.Data.DBPath = ec.DBPath
	}
	if ec.Endpoint != nil {
		fc.Sink.Endpoint = ec.Endpoint
	}
	if ec.HostOut != nil {
		fc.Sink.HostOut = ec.HostOut
	}
	return fc
}
