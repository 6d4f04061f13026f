package lake

import (
	"fmt"
	"time"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

// Well-known non-partition objects.
const (
	StatePath = "state/last_interval.json"
	LeasePath = "state/lease.json"
)

const dateLayout = "2006-01-02"

// ConsumptionPartition returns the raw consumption partition path for one
// meter-day.
func ConsumptionPartition(m meter.Meter, date time.Time) string {
	return fmt.Sprintf("consumption/kind=%s/mpan_mprn=%s/serial=%s/date=%s/data.parquet",
		m.Kind, m.MPANOrMPRN, m.Serial, date.UTC().Format(dateLayout))
}

// RatesPartition returns the rate partition path for one tariff-day.
func RatesPartition(kind meter.Kind, productCode, tariffCode string, date time.Time) string {
	return fmt.Sprintf("rates/kind=%s/product=%s/tariff=%s/date=%s/data.parquet",
		kind, productCode, tariffCode, date.UTC().Format(dateLayout))
}

// CostPartition returns the costed consumption partition path for one
// meter-day, mirroring the raw layout.
func CostPartition(m meter.Meter, date time.Time) string {
	return fmt.Sprintf("consumption_cost/kind=%s/mpan_mprn=%s/serial=%s/date=%s/data.parquet",
		m.Kind, m.MPANOrMPRN, m.Serial, date.UTC().Format(dateLayout))
}
