package models

import (
	"errors"
	"fmt"
)

// FatalStartupError marks an unrecoverable initialization condition. It
// propagates to the process boundary and terminates the process; it is
// never retried. Rationale: never operate on insufficient data.
type FatalStartupError struct {
	Stage string // "connect", "warmup", "resources"
	Err   error
}

func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("fatal startup (%s): %v", e.Stage, e.Err)
}

func (e *FatalStartupError) Unwrap() error { return e.Err }

// TransientSourceError is a pull failure during steady state. It is retried
// with reconnect up to the configured budget before escalating.
type TransientSourceError struct {
	Symbol string
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("source pull %s: %v", e.Symbol, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// ErrMissingPredictor marks a symbol with no usable model. Local and
// non-fatal: the symbol degrades to ingest-only.
var ErrMissingPredictor = errors.New("no predictor loaded for symbol")

// ErrWidthMismatch marks a feature vector whose width does not match the
// predictor's declared input width. The single inference attempt is skipped.
var ErrWidthMismatch = errors.New("feature vector width mismatch")

// ErrMissingFeature marks a rule referencing a feature column that is not
// present in the computed row. The rule is treated as permanently
// non-matching after the first log.
var ErrMissingFeature = errors.New("rule references missing feature")
