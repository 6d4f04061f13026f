package enrich

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Decimal wraps apd.Decimal so money math never goes through binary floating
// point multiplication.
type Decimal struct {
	value apd.Decimal
}

// NewDecimalFromFloat converts a float64 consumption or unit-rate value.
func NewDecimalFromFloat(f float64) (Decimal, error) {
	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal: %w", err)
	}
	return Decimal{value: d}, nil
}

// Mul returns the product of d and other.
func (d Decimal) Mul(other Decimal) Decimal {
	var result apd.Decimal
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Mul(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Float64 returns the nearest float64 representation.
func (d Decimal) Float64() (float64, error) {
	return d.value.Float64()
}

func (d Decimal) String() string {
	return d.value.String()
}

// cost multiplies consumption by unit rate with decimal semantics.
func cost(consumption, unitRate float64) (float64, error) {
	c, err := NewDecimalFromFloat(consumption)
	if err != nil {
		return 0, err
	}
	r, err := NewDecimalFromFloat(unitRate)
	if err != nil {
		return 0, err
	}
	return c.Mul(r).Float64()
}
