package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"golang.org/x/time/rate"
)

var (
	// ErrMissingCredential means the provider has no API key configured and was skipped
	ErrMissingCredential = errors.New("provider credential not configured")
	// ErrNoData means the provider answered but had no quote for the ticker
	ErrNoData = errors.New("provider returned no data")
	// ErrRateLimited means the local limiter refused the call
	ErrRateLimited = errors.New("provider rate limit reached")
	// ErrUpstreamStatus means the provider answered with a non-2xx status
	ErrUpstreamStatus = errors.New("provider returned non-success status")
	// ErrMalformedResponse means the body could not be decoded into a quote
	ErrMalformedResponse = errors.New("provider returned malformed response")
)

// Provider fetches a quote for a canonical symbol from one data source
type Provider interface {
	// Name returns a short identifier used in logs and metrics
	Name() string

	// Fetch returns a populated quote or a non-fatal error
	Fetch(ctx context.Context, symbol string) (*models.Quote, error)
}

// Options configures an HTTP-backed provider
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// MinGap is the minimum spacing between two calls to the provider. Calls
	// wait for their slot. Zero disables local throttling.
	MinGap time.Duration
	Client *http.Client
	Now    func() time.Time
}

// httpSource is the shared plumbing of the upstream providers
type httpSource struct {
	name        string
	baseURL     string
	apiKey      string
	requiresKey bool
	tickers     map[string]string
	client      *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	now         func() time.Time
}

func newHTTPSource(name, defaultBaseURL string, requiresKey bool, tickers map[string]string, opts Options) httpSource {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MinGap > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinGap), 1)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return httpSource{
		name:        name,
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		requiresKey: requiresKey,
		tickers:     tickers,
		client:      client,
		limiter:     limiter,
		timeout:     timeout,
		now:         now,
	}
}

func (s *httpSource) Name() string {
	return s.name
}

// ticker maps a canonical symbol to this provider's vocabulary
func (s *httpSource) ticker(symbol string) string {
	if t, ok := s.tickers[symbol]; ok {
		return t
	}
	return symbol
}

// admit checks the credential, then waits for the throttle. Symbols resolved
// back to back queue behind each other instead of falling through; the call
// is refused only when its turn would come after the request timeout.
func (s *httpSource) admit(ctx context.Context) error {
	if s.requiresKey && s.apiKey == "" {
		return ErrMissingCredential
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.limiter.Wait(waitCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}

// getJSON performs a GET against baseURL+path and decodes the body into dest
func (s *httpSource) getJSON(ctx context.Context, path string, params url.Values, headers map[string]string, dest interface{}) error {
	endpoint := s.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: status %d: %w", s.name, resp.StatusCode, ErrUpstreamStatus)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: %v: %w", s.name, err, ErrMalformedResponse)
	}
	return nil
}

// buildQuote assembles a quote from normalized numbers
func (s *httpSource) buildQuote(symbol string, price, change, changePercent, high, low, open float64, volume int64) *models.Quote {
	return &models.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		High:          high,
		Low:           low,
		Open:          open,
		Volume:        volume,
		Timestamp:     s.now().UTC(),
		Source:        s.name,
	}
}

// parseNumber parses a provider number that may be quoted, empty or suffixed with %
func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %v: %w", raw, err, ErrMalformedResponse)
	}
	return v, nil
}

// parseNumbers parses several fields, stopping at the first failure
func parseNumbers(raws ...string) ([]float64, error) {
	out := make([]float64, len(raws))
	for i, raw := range raws {
		v, err := parseNumber(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
