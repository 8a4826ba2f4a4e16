package market

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/session"
	"github.com/richgang/indice-killer/pkg/logger"
)

// Chain resolves quotes by trying upstream providers in order and falling
// back to the synthetic generator.
type Chain struct {
	upstream []Provider
	terminal *Synthetic
	calendar *session.Calendar
	timeout  time.Duration
}

// NewChain creates a provider chain. Upstream providers are tried in the
// given order; terminal answers when all of them fail.
func NewChain(calendar *session.Calendar, timeout time.Duration, terminal *Synthetic, upstream ...Provider) *Chain {
	if calendar == nil {
		calendar = session.NewCalendar(nil)
	}
	if terminal == nil {
		terminal = NewSynthetic(nil, calendar.Now)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Chain{
		upstream: upstream,
		terminal: terminal,
		calendar: calendar,
		timeout:  timeout,
	}
}

// Providers returns the provider names in resolution order, terminal last
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.upstream)+1)
	for _, p := range c.upstream {
		names = append(names, p.Name())
	}
	return append(names, c.terminal.Name())
}

// Resolve returns a quote for symbol. It never fails: provider errors are
// logged and counted, then the next provider is tried.
func (c *Chain) Resolve(ctx context.Context, symbol string) *models.Quote {
	for _, p := range c.upstream {
		q, err := c.attempt(ctx, p, symbol)
		if err != nil {
			kind := failureKind(err)
			providerAttempts.WithLabelValues(p.Name(), kind).Inc()
			if kind == "missing_credential" {
				logger.Debug("Quote provider skipped",
					logger.String("provider", p.Name()),
					logger.String("symbol", symbol),
				)
			} else {
				logger.Warn("Quote provider failed",
					logger.String("provider", p.Name()),
					logger.String("symbol", symbol),
					logger.String("kind", kind),
					logger.ErrorField(err),
				)
			}
			continue
		}

		providerAttempts.WithLabelValues(p.Name(), "success").Inc()
		return c.stamp(q)
	}

	providerAttempts.WithLabelValues(c.terminal.Name(), "success").Inc()
	return c.stamp(c.terminal.Quote(symbol))
}

func (c *Chain) attempt(ctx context.Context, p Provider, symbol string) (*models.Quote, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	q, err := p.Fetch(attemptCtx, symbol)
	if !errors.Is(err, ErrMissingCredential) && !errors.Is(err, ErrRateLimited) {
		providerLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrNoData
	}
	if err := q.Validate(); err != nil {
		return nil, errors.Join(ErrMalformedResponse, err)
	}
	return q, nil
}

// stamp fills the market-hours fields from the calendar
func (c *Chain) stamp(q *models.Quote) *models.Quote {
	open, status := c.calendar.IsMarketOpen(q.Symbol, q.Timestamp)
	q.IsMarketOpen = open
	q.MarketStatus = status
	return q
}

func failureKind(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUpstreamStatus):
		return "upstream_status"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "network"
	}
}
