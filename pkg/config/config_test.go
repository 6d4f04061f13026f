package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

func validSettings() Settings {
	return Settings{
		OCTOPUS_API_KEY:        "sk_test_key",
		OCTOPUS_ACCOUNT_NUMBER: "A-12345",
	}
}

func TestFromSettings_MissingCredentials(t *testing.T) {
	_, err := fromSettings(Settings{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "OCTOPUS_API_KEY")
	require.Contains(t, err.Error(), "OCTOPUS_ACCOUNT_NUMBER")
}

func TestFromSettings_Defaults(t *testing.T) {
	cfg, err := fromSettings(validSettings())
	require.NoError(t, err)
	require.Equal(t, DefaultBootstrapDays, cfg.BootstrapDays)
	require.Equal(t, DefaultSafetyLag, cfg.SafetyLag)
	require.Equal(t, DefaultGranularity, cfg.Granularity)
	require.Equal(t, DefaultConcurrency, cfg.Concurrency)
	require.Equal(t, DefaultRunTimeout, cfg.RunTimeout)
	require.NotEmpty(t, cfg.DataDir)
}

func TestFromSettings_ExplicitValues(t *testing.T) {
	s := validSettings()
	s.BOOTSTRAP_LOOKBACK_DAYS = 7
	s.SAFETY_LAG_MINUTES = 60
	s.GRANULARITY_MINUTES = 15
	s.MAX_CONCURRENT_METERS = 4
	s.RUN_TIMEOUT_MINUTES = 20

	cfg, err := fromSettings(s)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.BootstrapDays)
	require.Equal(t, time.Hour, cfg.SafetyLag)
	require.Equal(t, 15*time.Minute, cfg.Granularity)
	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, 20*time.Minute, cfg.RunTimeout)
}

func TestFromSettings_ParsesMeters(t *testing.T) {
	s := validSettings()
	s.METERS_JSON = `[
		{"kind":"electricity","mpan_or_mprn":"1234567890","serial":"21E1111111","tariff_code":"E-1R-AGILE-24-09-01-A"},
		{"kind":"gas","mpan_or_mprn":"9876543210","serial":"G4-222222"}
	]`
	cfg, err := fromSettings(s)
	require.NoError(t, err)
	require.Len(t, cfg.Meters, 2)
	require.Equal(t, meter.Electricity, cfg.Meters[0].Kind)
	require.Equal(t, "E-1R-AGILE-24-09-01-A", cfg.Meters[0].TariffCode)
	require.Equal(t, "9876543210:G4-222222", cfg.Meters[1].StateKey())
}

func TestFromSettings_RejectsDuplicateMeters(t *testing.T) {
	s := validSettings()
	s.METERS_JSON = `[
		{"kind":"electricity","mpan_or_mprn":"1234","serial":"A1"},
		{"kind":"electricity","mpan_or_mprn":"1234","serial":"A1"}
	]`
	_, err := fromSettings(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), `duplicate meter "1234:A1"`)
}

func TestFromSettings_ReportsEveryMeterProblem(t *testing.T) {
	s := validSettings()
	s.METERS_JSON = `[
		{"kind":"water","mpan_or_mprn":"1234","serial":"A1"},
		{"kind":"gas","mpan_or_mprn":"","serial":"G1"}
	]`
	_, err := fromSettings(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kind")
	require.Contains(t, err.Error(), "mpan_or_mprn")
}

func TestFromSettings_MalformedMetersJSON(t *testing.T) {
	s := validSettings()
	s.METERS_JSON = `[{"kind":`
	_, err := fromSettings(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed METERS_JSON")
}

func TestFromSettings_GlobalTariffCodes(t *testing.T) {
	s := validSettings()
	s.ELECTRICITY_PRODUCT_CODE = "AGILE-24-09-01"
	s.ELECTRICITY_TARIFF_CODE = "E-1R-AGILE-24-09-01-A"

	cfg, err := fromSettings(s)
	require.NoError(t, err)
	require.Equal(t, "AGILE-24-09-01", cfg.Tariffs[meter.Electricity].ProductCode)
	require.Empty(t, cfg.Tariffs[meter.Gas].ProductCode)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"OCTOPUS_API_KEY": "sk_file_key",
		"OCTOPUS_ACCOUNT_NUMBER": "A-98765",
		"BOOTSTRAP_LOOKBACK_DAYS": 14
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk_file_key", cfg.APIKey)
	require.Equal(t, "A-98765", cfg.AccountNumber)
	require.Equal(t, 14, cfg.BootstrapDays)
}
