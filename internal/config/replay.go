package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Config
	Input             string
	FromLine          uint64
	ToLine            uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	FailFast          bool
	Errors            string
	MetricsAddr       string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(500),
		"checkpoint":         "./data/replay_checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      100 * time.Millisecond,
		"errors":             "./data/replay_errors.jsonl",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Config:            poolConfig(v),
		Input:             v.GetString("in"),
		FromLine:          v.GetUint64("from-line"),
		ToLine:            v.GetUint64("to-line"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		FailFast:          v.GetBool("fail-fast"),
		Errors:            v.GetString("errors"),
		MetricsAddr:       v.GetString("metrics-addr"),
	}, nil
}
