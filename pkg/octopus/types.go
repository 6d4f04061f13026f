package octopus

import (
	"time"
)

// consumptionPage is one page of the consumption endpoint.
type consumptionPage struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []wireInterval `json:"results"`
}

type wireInterval struct {
	Consumption   float64   `json:"consumption"`
	IntervalStart time.Time `json:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end"`
}

// ratePage is one page of the standard-unit-rates endpoint.
type ratePage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []wireRate `json:"results"`
}

type wireRate struct {
	ValueExVAT  float64    `json:"value_ex_vat"`
	ValueIncVAT float64    `json:"value_inc_vat"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
}

// Account is the account payload: meter points with their agreements.
// Used for tariff auto-discovery and meter discovery.
type Account struct {
	Number                 string       `json:"number"`
	ElectricityMeterPoints []MeterPoint `json:"electricity_meter_points"`
	GasMeterPoints         []MeterPoint `json:"gas_meter_points"`
}

// MeterPoint is one supply point. MPAN is set for electricity points,
// MPRN for gas.
type MeterPoint struct {
	MPAN       string         `json:"mpan,omitempty"`
	MPRN       string         `json:"mprn,omitempty"`
	Meters     []AccountMeter `json:"meters"`
	Agreements []Agreement    `json:"agreements"`
}

// PointID returns whichever of MPAN/MPRN is populated.
func (p MeterPoint) PointID() string {
	if p.MPAN != "" {
		return p.MPAN
	}
	return p.MPRN
}

// AccountMeter is a physical meter attached to a supply point.
type AccountMeter struct {
	SerialNumber string `json:"serial_number"`
}

// Agreement binds a tariff code to a validity window. A nil ValidTo means the
// agreement is still open.
type Agreement struct {
	TariffCode string     `json:"tariff_code"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to"`
}

// Active reports whether the agreement's validity window contains ts.
func (a Agreement) Active(ts time.Time) bool {
	if ts.Before(a.ValidFrom) {
		return false
	}
	return a.ValidTo == nil || ts.Before(*a.ValidTo)
}
