package lake

import (
	"time"
)

// ConsumptionRow is the parquet schema of raw consumption partitions.
type ConsumptionRow struct {
	Kind          string    `parquet:"kind,dict"`
	MPANOrMPRN    string    `parquet:"mpan_mprn,dict"`
	Serial        string    `parquet:"serial,dict"`
	IntervalStart time.Time `parquet:"interval_start,timestamp"`
	IntervalEnd   time.Time `parquet:"interval_end,timestamp"`
	Consumption   float64   `parquet:"consumption"`
}

// RateRow is the parquet schema of rate partitions. ValidTo is null for
// open-ended rates.
type RateRow struct {
	Kind        string     `parquet:"kind,dict"`
	ProductCode string     `parquet:"product_code,dict"`
	TariffCode  string     `parquet:"tariff_code,dict"`
	ValidFrom   time.Time  `parquet:"valid_from,timestamp"`
	ValidTo     *time.Time `parquet:"valid_to,optional,timestamp"`
	ValueIncVAT float64    `parquet:"value_inc_vat"`
	ValueExVAT  float64    `parquet:"value_ex_vat"`
}

// CostRow is the parquet schema of costed consumption partitions: the raw
// layout plus the applied unit rate and computed cost. UnitRate and Cost are
// null for intervals with no matching rate.
type CostRow struct {
	Kind          string    `parquet:"kind,dict"`
	MPANOrMPRN    string    `parquet:"mpan_mprn,dict"`
	Serial        string    `parquet:"serial,dict"`
	IntervalStart time.Time `parquet:"interval_start,timestamp"`
	IntervalEnd   time.Time `parquet:"interval_end,timestamp"`
	Consumption   float64   `parquet:"consumption"`
	TariffCode    string    `parquet:"tariff_code,dict"`
	UnitRate      *float64  `parquet:"unit_rate,optional"`
	Cost          *float64  `parquet:"cost,optional"`
}
