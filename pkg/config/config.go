// Package config loads and validates run configuration.
//
// Settings come from an optional JSON file merged with environment variables
// (gonfig resolves both, env wins). The raw settings are normalized into a
// validated Config before anything else runs; a bad meter list or missing
// credentials fail fast with one error naming every problem.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tkanos/gonfig"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

// Defaults applied when the corresponding setting is absent.
const (
	DefaultBootstrapDays = 30
	DefaultSafetyLag     = 30 * time.Minute
	DefaultGranularity   = 30 * time.Minute
	DefaultConcurrency   = 2
	DefaultRunTimeout    = 10 * time.Minute
)

// Settings mirrors the configuration surface as gonfig sees it: field names
// double as environment variable names.
type Settings struct {
	OCTOPUS_API_KEY        string
	OCTOPUS_ACCOUNT_NUMBER string
	METERS_JSON            string

	ELECTRICITY_PRODUCT_CODE string
	GAS_PRODUCT_CODE         string
	ELECTRICITY_TARIFF_CODE  string
	GAS_TARIFF_CODE          string

	BOOTSTRAP_LOOKBACK_DAYS int
	SAFETY_LAG_MINUTES      int
	GRANULARITY_MINUTES     int
	MAX_CONCURRENT_METERS   int
	RUN_TIMEOUT_MINUTES     int

	API_BASE_URL  string
	DATA_DIR      string
	DEBUG_LOGGING bool
}

// TariffCodes holds globally configured product/tariff codes for one kind.
type TariffCodes struct {
	ProductCode string
	TariffCode  string
}

// Config is the validated runtime configuration.
type Config struct {
	APIKey        string
	AccountNumber string
	APIBaseURL    string

	Meters []meter.Meter

	// Global tariff codes per kind; empty entries mean "not configured".
	Tariffs map[meter.Kind]TariffCodes

	BootstrapDays int
	SafetyLag     time.Duration
	Granularity   time.Duration
	Concurrency   int
	RunTimeout    time.Duration

	DataDir      string
	DebugLogging bool
}

// Load reads settings from the given JSON file (may be empty for env-only)
// and the environment, then validates them into a Config.
func Load(path string) (*Config, error) {
	var s Settings
	if err := gonfig.GetConf(path, &s); err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return fromSettings(s)
}

func fromSettings(s Settings) (*Config, error) {
	var missing []string
	if s.OCTOPUS_API_KEY == "" {
		missing = append(missing, "OCTOPUS_API_KEY")
	}
	if s.OCTOPUS_ACCOUNT_NUMBER == "" {
		missing = append(missing, "OCTOPUS_ACCOUNT_NUMBER")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	meters, err := parseMeters(s.METERS_JSON)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:        s.OCTOPUS_API_KEY,
		AccountNumber: s.OCTOPUS_ACCOUNT_NUMBER,
		APIBaseURL:    s.API_BASE_URL,
		Meters:        meters,
		Tariffs: map[meter.Kind]TariffCodes{
			meter.Electricity: {ProductCode: s.ELECTRICITY_PRODUCT_CODE, TariffCode: s.ELECTRICITY_TARIFF_CODE},
			meter.Gas:         {ProductCode: s.GAS_PRODUCT_CODE, TariffCode: s.GAS_TARIFF_CODE},
		},
		BootstrapDays: s.BOOTSTRAP_LOOKBACK_DAYS,
		SafetyLag:     time.Duration(s.SAFETY_LAG_MINUTES) * time.Minute,
		Granularity:   time.Duration(s.GRANULARITY_MINUTES) * time.Minute,
		Concurrency:   s.MAX_CONCURRENT_METERS,
		RunTimeout:    time.Duration(s.RUN_TIMEOUT_MINUTES) * time.Minute,
		DataDir:       s.DATA_DIR,
		DebugLogging:  s.DEBUG_LOGGING,
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BootstrapDays <= 0 {
		c.BootstrapDays = DefaultBootstrapDays
	}
	if c.SafetyLag <= 0 {
		c.SafetyLag = DefaultSafetyLag
	}
	if c.Granularity <= 0 {
		c.Granularity = DefaultGranularity
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.DataDir == "" {
		c.DataDir = "./data/octopus2adls"
	}
}

// parseMeters decodes METERS_JSON and rejects invalid or duplicate
// descriptors. Two meters sharing an id:serial key would race on the same
// bookmark, so duplicates are a configuration error.
func parseMeters(raw string) ([]meter.Meter, error) {
	if raw == "" {
		return nil, nil
	}
	var meters []meter.Meter
	if err := json.Unmarshal([]byte(raw), &meters); err != nil {
		return nil, fmt.Errorf("malformed METERS_JSON: %w", err)
	}

	var problems []string
	seen := make(map[string]bool, len(meters))
	for _, m := range meters {
		if err := m.Validate(); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if seen[m.StateKey()] {
			problems = append(problems, fmt.Sprintf("duplicate meter %q", m.StateKey()))
		}
		seen[m.StateKey()] = true
	}
	if len(problems) > 0 {
		return nil, errors.New("invalid METERS_JSON: " + strings.Join(problems, "; "))
	}
	return meters, nil
}
