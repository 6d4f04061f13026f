// Package tariff determines the product and tariff codes applicable to a
// meter. Precedence: per-meter override, then globally configured codes,
// then auto-discovery from the account's agreements.
package tariff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/config"
	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
	"github.com/chriscoveyduck/octopus2adls/pkg/octopus"
)

// ErrNoTariff means no tariff codes could be resolved for a meter. The cost
// enrichment stage is skipped for that meter; raw ingestion is unaffected.
var ErrNoTariff = errors.New("tariff: no tariff codes resolvable")

// Codes is a resolved (product, tariff) pair.
type Codes struct {
	ProductCode string
	TariffCode  string
}

// AccountSource supplies the account payload for auto-discovery.
type AccountSource interface {
	Account(ctx context.Context) (*octopus.Account, error)
}

// Resolver resolves tariff codes per meter. The account payload is fetched
// at most once and cached for the lifetime of the resolver, which is one
// run; discovery is never cached across runs.
type Resolver struct {
	globals map[meter.Kind]config.TariffCodes
	source  AccountSource
	log     logrus.FieldLogger

	mu       sync.Mutex
	acct     *octopus.Account
	acctErr  error
	acctDone bool
}

// NewResolver returns a resolver using the globally configured codes and the
// given account source for discovery.
func NewResolver(globals map[meter.Kind]config.TariffCodes, source AccountSource, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{globals: globals, source: source, log: log}
}

// Resolve returns the codes applicable to m at now.
func (r *Resolver) Resolve(ctx context.Context, m meter.Meter, now time.Time) (Codes, error) {
	// 1. Per-meter override.
	if m.TariffCode != "" {
		parsed := ParseCode(m.TariffCode)
		if parsed.ProductCode == "" {
			return Codes{}, fmt.Errorf("%w: override %q has no parsable product code", ErrNoTariff, m.TariffCode)
		}
		return Codes{ProductCode: parsed.ProductCode, TariffCode: m.TariffCode}, nil
	}

	// 2. Globally configured codes for the meter's kind.
	if g, ok := r.globals[m.Kind]; ok && g.ProductCode != "" && g.TariffCode != "" {
		return Codes{ProductCode: g.ProductCode, TariffCode: g.TariffCode}, nil
	}

	// 3. Auto-discovery from account agreements.
	codes, err := r.discover(ctx, m, now)
	if err != nil {
		return Codes{}, err
	}
	return codes, nil
}

// discover picks the most recent agreement whose validity window contains
// now, preferring the meter's own supply point over others of the same kind.
func (r *Resolver) discover(ctx context.Context, m meter.Meter, now time.Time) (Codes, error) {
	acct, err := r.account(ctx)
	if err != nil {
		return Codes{}, fmt.Errorf("%w: account lookup failed: %v", ErrNoTariff, err)
	}

	points := acct.ElectricityMeterPoints
	if m.Kind == meter.Gas {
		points = acct.GasMeterPoints
	}

	var candidates []octopus.MeterPoint
	for _, p := range points {
		if p.PointID() == m.MPANOrMPRN {
			candidates = append([]octopus.MeterPoint{p}, candidates...)
		} else {
			candidates = append(candidates, p)
		}
	}

	for _, p := range candidates {
		if codes, ok := pickAgreement(p.Agreements, now); ok {
			r.log.WithFields(logrus.Fields{"meter": m.StateKey(), "tariff": codes.TariffCode}).
				Debug("tariff auto-discovered from account agreement")
			return codes, nil
		}
	}
	return Codes{}, fmt.Errorf("%w: no active agreement for %s meter %s", ErrNoTariff, m.Kind, m.StateKey())
}

// pickAgreement chooses the active agreement with the latest valid_from
// whose tariff code parses to a product code.
func pickAgreement(agreements []octopus.Agreement, now time.Time) (Codes, bool) {
	var chosen *octopus.Agreement
	for i, ag := range agreements {
		if ag.TariffCode == "" || !ag.Active(now) {
			continue
		}
		if ParseCode(ag.TariffCode).ProductCode == "" {
			continue
		}
		if chosen == nil || ag.ValidFrom.After(chosen.ValidFrom) {
			chosen = &agreements[i]
		}
	}
	if chosen == nil {
		return Codes{}, false
	}
	return Codes{ProductCode: ParseCode(chosen.TariffCode).ProductCode, TariffCode: chosen.TariffCode}, true
}

func (r *Resolver) account(ctx context.Context) (*octopus.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.acctDone {
		r.acct, r.acctErr = r.source.Account(ctx)
		r.acctDone = true
	}
	return r.acct, r.acctErr
}
