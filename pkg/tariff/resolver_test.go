package tariff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chriscoveyduck/octopus2adls/pkg/config"
	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
	"github.com/chriscoveyduck/octopus2adls/pkg/octopus"
)

var resolveAt = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeAccountSource struct {
	account *octopus.Account
	err     error
	calls   int
}

func (f *fakeAccountSource) Account(_ context.Context) (*octopus.Account, error) {
	f.calls++
	return f.account, f.err
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestParseCode(t *testing.T) {
	cases := []struct {
		code string
		want ParsedCode
	}{
		{"E-1R-AGILE-24-09-01-A", ParsedCode{Kind: "E", Register: "1R", ProductCode: "AGILE-24-09-01", Region: "A"}},
		{"G-1R-VAR-22-11-01-C", ParsedCode{Kind: "G", Register: "1R", ProductCode: "VAR-22-11-01", Region: "C"}},
		{"E-2R-FLUX-IMPORT-23-02-14-H", ParsedCode{Kind: "E", Register: "2R", ProductCode: "FLUX-IMPORT-23-02-14", Region: "H"}},
		{"E-1R-NOREGION-24", ParsedCode{Kind: "E", Register: "1R", ProductCode: "NOREGION-24"}},
		{"BOGUS", ParsedCode{Kind: "B"}},
		{"", ParsedCode{}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseCode(tc.code), "code %q", tc.code)
	}
}

func TestResolve_OverrideWins(t *testing.T) {
	// All three sources could answer; the per-meter override must win.
	src := &fakeAccountSource{account: accountWith("1234", "E-1R-VAR-22-11-01-C", resolveAt.AddDate(-1, 0, 0), nil)}
	globals := map[meter.Kind]config.TariffCodes{
		meter.Electricity: {ProductCode: "GO-23-03-01", TariffCode: "E-1R-GO-23-03-01-A"},
	}
	r := NewResolver(globals, src, quietLog())

	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1", TariffCode: "E-1R-AGILE-24-09-01-A"}
	codes, err := r.Resolve(context.Background(), m, resolveAt)
	require.NoError(t, err)
	require.Equal(t, Codes{ProductCode: "AGILE-24-09-01", TariffCode: "E-1R-AGILE-24-09-01-A"}, codes)
	require.Zero(t, src.calls, "override resolution must not hit the account API")
}

func TestResolve_UnparsableOverrideFails(t *testing.T) {
	r := NewResolver(nil, &fakeAccountSource{}, quietLog())
	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1", TariffCode: "JUNK"}
	_, err := r.Resolve(context.Background(), m, resolveAt)
	require.ErrorIs(t, err, ErrNoTariff)
}

func TestResolve_GlobalCodes(t *testing.T) {
	globals := map[meter.Kind]config.TariffCodes{
		meter.Gas: {ProductCode: "VAR-22-11-01", TariffCode: "G-1R-VAR-22-11-01-C"},
	}
	r := NewResolver(globals, &fakeAccountSource{}, quietLog())

	m := meter.Meter{Kind: meter.Gas, MPANOrMPRN: "999", Serial: "G1"}
	codes, err := r.Resolve(context.Background(), m, resolveAt)
	require.NoError(t, err)
	require.Equal(t, "G-1R-VAR-22-11-01-C", codes.TariffCode)
}

func TestResolve_DiscoveryPicksLatestActiveAgreement(t *testing.T) {
	old := resolveAt.AddDate(-2, 0, 0)
	recent := resolveAt.AddDate(0, -3, 0)
	src := &fakeAccountSource{account: &octopus.Account{
		ElectricityMeterPoints: []octopus.MeterPoint{{
			MPAN: "1234",
			Agreements: []octopus.Agreement{
				{TariffCode: "E-1R-VAR-22-11-01-C", ValidFrom: old},
				{TariffCode: "E-1R-AGILE-24-09-01-C", ValidFrom: recent},
			},
		}},
	}}
	r := NewResolver(nil, src, quietLog())

	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1"}
	codes, err := r.Resolve(context.Background(), m, resolveAt)
	require.NoError(t, err)
	require.Equal(t, Codes{ProductCode: "AGILE-24-09-01", TariffCode: "E-1R-AGILE-24-09-01-C"}, codes)
}

func TestResolve_DiscoverySkipsExpiredAgreements(t *testing.T) {
	start := resolveAt.AddDate(-1, 0, 0)
	expired := resolveAt.AddDate(0, -1, 0)
	src := &fakeAccountSource{account: accountWith("1234", "E-1R-VAR-22-11-01-C", start, &expired)}
	r := NewResolver(nil, src, quietLog())

	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1"}
	_, err := r.Resolve(context.Background(), m, resolveAt)
	require.ErrorIs(t, err, ErrNoTariff)
}

func TestResolve_DiscoveryPrefersMatchingPoint(t *testing.T) {
	start := resolveAt.AddDate(-1, 0, 0)
	src := &fakeAccountSource{account: &octopus.Account{
		ElectricityMeterPoints: []octopus.MeterPoint{
			{MPAN: "other", Agreements: []octopus.Agreement{{TariffCode: "E-1R-GO-23-03-01-A", ValidFrom: start}}},
			{MPAN: "1234", Agreements: []octopus.Agreement{{TariffCode: "E-1R-AGILE-24-09-01-C", ValidFrom: start}}},
		},
	}}
	r := NewResolver(nil, src, quietLog())

	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1"}
	codes, err := r.Resolve(context.Background(), m, resolveAt)
	require.NoError(t, err)
	require.Equal(t, "E-1R-AGILE-24-09-01-C", codes.TariffCode)
}

func TestResolve_AccountFetchedOnce(t *testing.T) {
	start := resolveAt.AddDate(-1, 0, 0)
	src := &fakeAccountSource{account: accountWith("1234", "E-1R-AGILE-24-09-01-C", start, nil)}
	r := NewResolver(nil, src, quietLog())

	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1"}
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), m, resolveAt)
		require.NoError(t, err)
	}
	require.Equal(t, 1, src.calls)
}

func TestResolve_AccountErrorMapsToNoTariff(t *testing.T) {
	src := &fakeAccountSource{err: errors.New("boom")}
	r := NewResolver(nil, src, quietLog())

	m := meter.Meter{Kind: meter.Electricity, MPANOrMPRN: "1234", Serial: "A1"}
	_, err := r.Resolve(context.Background(), m, resolveAt)
	require.ErrorIs(t, err, ErrNoTariff)
}

func accountWith(mpan, tariff string, from time.Time, to *time.Time) *octopus.Account {
	return &octopus.Account{
		ElectricityMeterPoints: []octopus.MeterPoint{{
			MPAN:       mpan,
			Agreements: []octopus.Agreement{{TariffCode: tariff, ValidFrom: from, ValidTo: to}},
		}},
	}
}
