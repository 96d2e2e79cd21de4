// Package dnc checks phone numbers against the do-not-call registry.
package dnc

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lender-enrich/internal/extract"
	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/pkg/realvalidation"
)

// Messages for inconclusive lookups.
const (
	ErrMissingInput     = "Missing phone or API token"
	ErrInvalidLength    = "Invalid phone number length"
	ErrAPIError         = "API returned error"
	ErrUnexpectedFormat = "Unexpected API response format"
)

// Checker looks up phones in the registry. Check never fails; problems are
// reported in DNCResult.Error.
type Checker struct {
	client  realvalidation.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// Option configures a Checker.
type Option func(*Checker)

// WithRate spaces lookups to at most perSec calls per second. Zero or less
// disables spacing.
func WithRate(perSec float64) Option {
	return func(c *Checker) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a Checker. A nil client means no registry credential is
// configured and every check is inconclusive.
func NewChecker(client realvalidation.Client, opts ...Option) *Checker {
	c := &Checker{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether a registry credential is available.
func (c *Checker) Configured() bool {
	return c.client != nil
}

// Check normalizes phone and looks it up. Numbers that are not ten digits
// are rejected without a registry call.
func (c *Checker) Check(ctx context.Context, phone string) model.DNCResult {
	if phone == "" || c.client == nil {
		c.metrics.DNC(metrics.OutcomeInvalid)
		return model.DNCResult{Error: ErrMissingInput}
	}

	digits := extract.NormalizePhone(phone)
	if len(digits) != 10 {
		c.metrics.DNC(metrics.OutcomeInvalid)
		return model.DNCResult{Error: ErrInvalidLength}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.DNC(metrics.OutcomeError)
			return model.DNCResult{Error: err.Error()}
		}
	}

	resp, err := c.client.DNCLookup(ctx, digits)
	if err != nil {
		zap.L().Warn("dnc: lookup failed", zap.String("phone", digits), zap.Error(err))
		c.metrics.DNC(metrics.OutcomeError)
		return model.DNCResult{Error: err.Error()}
	}

	res := Interpret(resp)
	switch {
	case res.Inconclusive():
		c.metrics.DNC(metrics.OutcomeError)
	case res.IsDNC:
		c.metrics.DNC(metrics.OutcomeDNC)
	default:
		c.metrics.DNC(metrics.OutcomeClear)
	}
	return res
}

// Interpret maps a registry response to a DNCResult. Only an OK response
// with a Y or N national flag is authoritative.
func Interpret(resp *realvalidation.LookupResponse) model.DNCResult {
	if resp == nil {
		return model.DNCResult{Error: ErrUnexpectedFormat}
	}

	if resp.ResponseCode == realvalidation.CodeError {
		msg := resp.ResponseMsg
		if msg == "" {
			msg = ErrAPIError
		}
		return model.DNCResult{Error: msg}
	}

	if resp.ResponseCode != realvalidation.CodeOK {
		return model.DNCResult{Error: ErrUnexpectedFormat}
	}

	switch resp.NationalDNC {
	case "Y", "N":
		national := resp.NationalDNC == "Y"
		return model.DNCResult{
			IsDNC:       national,
			NationalDNC: national,
			StateDNC:    resp.StateDNC == "Y",
			IsCell:      resp.IsCell == "Y",
			IsLitigator: resp.Litigator == "Y",
			ID:          resp.ID,
		}
	default:
		return model.DNCResult{Error: ErrUnexpectedFormat}
	}
}
