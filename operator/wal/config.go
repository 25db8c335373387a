package wal

import (
	"fmt"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Replay error policies
const (
	// ReplayAbort fails the call and retries the bad entry on the next call.
	ReplayAbort = "abort"
	// ReplaySkip logs the bad entry, steps past it and keeps replaying.
	ReplaySkip = "skip"
)

// Config configures a WAL operator instance.
type Config struct {
	// Path is the log directory. Required unless InMemory is set.
	Path string `yaml:"path"`
	// InMemory keeps the log in memory; nothing survives a restart.
	InMemory bool `yaml:"in_memory"`
	// ReadCount is the maximum number of entries replayed per event.
	ReadCount uint64 `yaml:"read_count"`
	// Read is the initial read cursor: the next key to replay.
	Read uint64 `yaml:"read"`
	// Write is the initial write cursor: the last key written.
	Write uint64 `yaml:"write"`
	// Recover raises Write to the highest key found in the log on open. The
	// read cursor is still taken from Read.
	Recover bool `yaml:"recover"`
	// Broken stops replay; events are still logged.
	Broken bool `yaml:"broken"`
	// OnReplayError is ReplayAbort or ReplaySkip.
	OnReplayError string `yaml:"on_replay_error"`
	// SyncWrites fsyncs every append.
	SyncWrites bool `yaml:"sync_writes"`
	// AppendRetry bounds retries of a failed append.
	AppendRetry errors.RetryConfig `yaml:"append_retry"`
}

// DefaultConfig returns the WAL defaults
func DefaultConfig() Config {
	return Config{
		ReadCount:     5,
		Read:          1,
		Write:         0,
		Recover:       true,
		OnReplayError: ReplayAbort,
		SyncWrites:    true,
		AppendRetry:   errors.DefaultRetryConfig(),
	}
}

// Validate checks the WAL configuration
func (c Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return configErr("path is required")
	}
	if c.ReadCount == 0 {
		return configErr("read_count must be positive")
	}
	if !c.Recover && c.Write < ^uint64(0) && c.Read > c.Write+1 {
		return configErr(fmt.Sprintf("read (%d) must not exceed write+1 (%d)", c.Read, c.Write+1))
	}
	switch c.OnReplayError {
	case ReplayAbort, ReplaySkip:
	default:
		return configErr(fmt.Sprintf("on_replay_error must be %q or %q, got %q",
			ReplayAbort, ReplaySkip, c.OnReplayError))
	}
	if c.AppendRetry.MaxRetries < 0 {
		return configErr("append_retry.max_retries must not be negative")
	}
	return nil
}

func configErr(msg string) error {
	return errors.WrapFatal(fmt.Errorf("%s: %w", msg, errors.ErrConfig), "WAL", "Validate", "config validation")
}
