// Package meter holds the metering domain types shared across the pipeline:
// meter descriptors and interval consumption records.
package meter

import (
	"fmt"
	"time"
)

// Kind identifies the energy type of a metering point.
type Kind string

const (
	Electricity Kind = "electricity"
	Gas         Kind = "gas"
)

// Valid reports whether k is a known energy kind.
func (k Kind) Valid() bool {
	return k == Electricity || k == Gas
}

// Meter describes one metering point. Identity is (MPANOrMPRN, Serial) and is
// immutable for the duration of a run.
type Meter struct {
	Kind       Kind   `json:"kind"`
	MPANOrMPRN string `json:"mpan_or_mprn"`
	Serial     string `json:"serial"`

	// TariffCode, when set, overrides tariff resolution for this meter.
	TariffCode string `json:"tariff_code,omitempty"`
}

// StateKey returns the bookmark key for this meter in the state store.
func (m Meter) StateKey() string {
	return m.MPANOrMPRN + ":" + m.Serial
}

// Validate checks that the descriptor carries every required field.
func (m Meter) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("meter %q: kind must be %q or %q, got %q", m.StateKey(), Electricity, Gas, m.Kind)
	}
	if m.MPANOrMPRN == "" {
		return fmt.Errorf("meter with serial %q: missing mpan_or_mprn", m.Serial)
	}
	if m.Serial == "" {
		return fmt.Errorf("meter %q: missing serial", m.MPANOrMPRN)
	}
	return nil
}

// Interval is one metering reading bounded by explicit start/end timestamps.
// After validation intervals for a meter are non-overlapping and sorted.
type Interval struct {
	Start       time.Time
	End         time.Time
	Consumption float64
	Unit        string
}

// Valid reports whether the interval has a positive duration.
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}
