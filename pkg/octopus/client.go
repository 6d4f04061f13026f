// Package octopus is a paginated, retrying client for the Octopus Energy REST
// API. Requests pace themselves through a shared RateLimiter; transient
// failures retry with exponential backoff and jitter, 429 responses hold the
// whole limiter for the server-signaled delay, and other 4xx responses fail
// immediately.
package octopus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
	"github.com/chriscoveyduck/octopus2adls/pkg/rates"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.octopus.energy/v1"

	pageSize       = 250
	maxAttempts    = 5
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	requestTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	AccountNumber string

	// Limiter is shared across all consumers of the API in a run.
	// Nil means no pacing.
	Limiter *RateLimiter

	HTTPClient *http.Client
	Log        logrus.FieldLogger
}

// Client talks to the Octopus API.
type Client struct {
	baseURL string
	apiKey  string
	account string
	limiter *RateLimiter
	http    *http.Client
	log     logrus.FieldLogger
}

// New returns a configured client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(0)
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		account: cfg.AccountNumber,
		limiter: cfg.Limiter,
		http:    cfg.HTTPClient,
		log:     cfg.Log,
	}
}

// fmtTime renders a timestamp the way the API expects: UTC Zulu, second
// precision.
func fmtTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05Z")
}

func consumptionPath(m meter.Meter) string {
	if m.Kind == meter.Electricity {
		return fmt.Sprintf("/electricity-meter-points/%s/meters/%s/consumption/", m.MPANOrMPRN, m.Serial)
	}
	return fmt.Sprintf("/gas-meter-points/%s/meters/%s/consumption/", m.MPANOrMPRN, m.Serial)
}

func ratesPath(productCode, tariffCode string, kind meter.Kind) string {
	if kind == meter.Electricity {
		return fmt.Sprintf("/products/%s/electricity-tariffs/%s/standard-unit-rates/", productCode, tariffCode)
	}
	return fmt.Sprintf("/products/%s/gas-tariffs/%s/standard-unit-rates/", productCode, tariffCode)
}

// Consumption fetches interval readings for m over [start, end), walking
// pages in ascending period order until the API reports no next page.
func (c *Client) Consumption(ctx context.Context, m meter.Meter, start, end time.Time) ([]meter.Interval, error) {
	params := url.Values{
		"period_from": {fmtTime(start)},
		"period_to":   {fmtTime(end)},
		"order_by":    {"period"},
		"page_size":   {strconv.Itoa(pageSize)},
	}

	var out []meter.Interval
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		var body consumptionPage
		if err := c.get(ctx, consumptionPath(m), params, &body); err != nil {
			return nil, fmt.Errorf("consumption %s page %d: %w", m.StateKey(), page, err)
		}
		for _, w := range body.Results {
			out = append(out, meter.Interval{
				Start:       w.IntervalStart.UTC(),
				End:         w.IntervalEnd.UTC(),
				Consumption: w.Consumption,
			})
		}
		if page == 1 || page%25 == 0 {
			c.log.WithFields(logrus.Fields{"meter": m.StateKey(), "page": page, "records": len(out)}).
				Debug("fetched consumption page")
		}
		if body.Next == nil || *body.Next == "" {
			return out, nil
		}
	}
}

// LatestInterval returns the most recent reading for m, or nil when the meter
// has no data. Single descending-order page of size one.
func (c *Client) LatestInterval(ctx context.Context, m meter.Meter) (*meter.Interval, error) {
	params := url.Values{
		"order_by":  {"-period"},
		"page_size": {"1"},
	}
	var body consumptionPage
	if err := c.get(ctx, consumptionPath(m), params, &body); err != nil {
		return nil, fmt.Errorf("latest interval %s: %w", m.StateKey(), err)
	}
	if len(body.Results) == 0 {
		return nil, nil
	}
	w := body.Results[0]
	return &meter.Interval{Start: w.IntervalStart.UTC(), End: w.IntervalEnd.UTC(), Consumption: w.Consumption}, nil
}

// UnitRates fetches standard unit rates overlapping [start, end) for the
// given product and tariff.
func (c *Client) UnitRates(ctx context.Context, productCode, tariffCode string, kind meter.Kind, start, end time.Time) ([]rates.Rate, error) {
	params := url.Values{
		"period_from": {fmtTime(start)},
		"period_to":   {fmtTime(end)},
		"order_by":    {"period"},
		"page_size":   {strconv.Itoa(pageSize)},
	}

	var out []rates.Rate
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		var body ratePage
		if err := c.get(ctx, ratesPath(productCode, tariffCode, kind), params, &body); err != nil {
			return nil, fmt.Errorf("unit rates %s/%s page %d: %w", productCode, tariffCode, page, err)
		}
		for _, w := range body.Results {
			r := rates.Rate{
				ProductCode: productCode,
				TariffCode:  tariffCode,
				Kind:        kind,
				ValidFrom:   w.ValidFrom.UTC(),
				ValueIncVAT: w.ValueIncVAT,
				ValueExVAT:  w.ValueExVAT,
			}
			if w.ValidTo != nil {
				to := w.ValidTo.UTC()
				r.ValidTo = &to
			}
			out = append(out, r)
		}
		if body.Next == nil || *body.Next == "" {
			return out, nil
		}
	}
}

// Account fetches the full account payload, including meter points and
// tariff agreements.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.get(ctx, fmt.Sprintf("/accounts/%s/", c.account), nil, &acct); err != nil {
		return nil, fmt.Errorf("account %s: %w", c.account, err)
	}
	return &acct, nil
}

// ListMeters returns all meters on the account grouped by kind, without
// tariff overrides. Supports meter discovery when METERS_JSON is not pinned.
func (c *Client) ListMeters(ctx context.Context) ([]meter.Meter, error) {
	acct, err := c.Account(ctx)
	if err != nil {
		return nil, err
	}
	var out []meter.Meter
	for _, p := range acct.ElectricityMeterPoints {
		for _, am := range p.Meters {
			out = append(out, meter.Meter{Kind: meter.Electricity, MPANOrMPRN: p.PointID(), Serial: am.SerialNumber})
		}
	}
	for _, p := range acct.GasMeterPoints {
		for _, am := range p.Meters {
			out = append(out, meter.Meter{Kind: meter.Gas, MPANOrMPRN: p.PointID(), Serial: am.SerialNumber})
		}
	}
	return out, nil
}

// get performs one GET with pacing, retry and decoding.
func (c *Client) get(ctx context.Context, path string, params url.Values, target interface{}) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doGet(ctx, path, params, target)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		c.log.WithFields(logrus.Fields{"path": path, "attempt": attempt + 1}).
			WithError(err).Warn("retryable request failure")
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, target interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	// API key as basic-auth username, empty password.
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Hold(retryAfter(resp))
		}
		return &StatusError{StatusCode: resp.StatusCode, URL: u, Body: string(body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return &permanentError{err: fmt.Errorf("empty response body for %s", u)}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &permanentError{err: fmt.Errorf("non-JSON response for %s: %w", u, err)}
	}
	return nil
}

// retryAfter parses the Retry-After header, defaulting to the base backoff.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return baseBackoff
}

// backoffDelay is exponential with full jitter on the last quarter, capped.
func backoffDelay(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d - jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
