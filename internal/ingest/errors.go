// Package ingest loads the evidence inputs for a processing date: the order
// book snapshot, call metadata and transcripts, the client registry, and the
// email export.
package ingest

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError marks a missing or malformed required input source. It is
// fatal: the run command aborts before any communication is processed.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest: %s", e.Source)
	}
	return fmt.Sprintf("ingest: %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// runDateLayout is the batch date argument format: DDMMYYYY.
const runDateLayout = "02012006"

// ParseRunDate parses a DDMMYYYY date argument.
func ParseRunDate(s string) (time.Time, error) {
	t, err := time.Parse(runDateLayout, s)
	if err != nil {
		return time.Time{}, &ConfigError{Source: fmt.Sprintf("run date %q must be DDMMYYYY", s), Err: err}
	}
	return t, nil
}
