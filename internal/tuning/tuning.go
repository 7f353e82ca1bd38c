// Package tuning holds the process-wide parameters that shape calls to the API server.
package tuning

import (
	"fmt"
	"sync/atomic"
)

const (
	DefaultRequestLimit   = 50
	DefaultTimeoutSeconds = 5
	DefaultMaxRetryCount  = 10
)

// CallTuning is an immutable snapshot. Replace it with Set, never modify a
// value returned by Current.
type CallTuning struct {
	RequestLimit   int64 `mapstructure:"callRequestLimit" json:"callRequestLimit"`
	TimeoutSeconds int64 `mapstructure:"callTimeoutSeconds" json:"callTimeoutSeconds"`
	MaxRetryCount  int   `mapstructure:"callMaxRetryCount" json:"callMaxRetryCount"`
}

// Defaults returns the built-in tuning.
func Defaults() CallTuning {
	return CallTuning{
		RequestLimit:   DefaultRequestLimit,
		TimeoutSeconds: DefaultTimeoutSeconds,
		MaxRetryCount:  DefaultMaxRetryCount,
	}
}

// SetDefaults fills zero fields with the built-in values.
func (t *CallTuning) SetDefaults() {
	if t.RequestLimit == 0 {
		t.RequestLimit = DefaultRequestLimit
	}
	if t.TimeoutSeconds == 0 {
		t.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if t.MaxRetryCount == 0 {
		t.MaxRetryCount = DefaultMaxRetryCount
	}
}

func (t CallTuning) Validate() error {
	if t.RequestLimit < 0 {
		return fmt.Errorf("callRequestLimit must not be negative, got %d", t.RequestLimit)
	}
	if t.TimeoutSeconds < 0 {
		return fmt.Errorf("callTimeoutSeconds must not be negative, got %d", t.TimeoutSeconds)
	}
	if t.MaxRetryCount < 0 {
		return fmt.Errorf("callMaxRetryCount must not be negative, got %d", t.MaxRetryCount)
	}
	return nil
}

var current atomic.Pointer[CallTuning]

func init() {
	d := Defaults()
	current.Store(&d)
}

// Current returns the snapshot in effect.
func Current() CallTuning {
	return *current.Load()
}

// Set publishes a new snapshot and returns the previous one.
func Set(t CallTuning) CallTuning {
	return *current.Swap(&t)
}
