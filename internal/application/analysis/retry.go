package analysis

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// RetryPolicy controls how transient model failures are retried.
type RetryPolicy struct {
	// MaxAttempts counts the first call; 1 disables retries.
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

const (
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = time.Second
	DefaultMaxBackoff        = 20 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// DefaultRetryPolicy retries twice, starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = d.BackoffMultiplier
	}
	return p
}

// Backoff is the wait before retry number attempt (0 based). A server
// suggested delay replaces the computed one but is still capped.
func (p RetryPolicy) Backoff(attempt int, suggested time.Duration) time.Duration {
	if suggested > 0 {
		if suggested > p.MaxBackoff {
			return p.MaxBackoff
		}
		return suggested
	}
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
		if backoff >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return time.Duration(backoff)
}

// retryDelayRegex matches "Please retry in 12.5s" and "retryDelay: 12s".
var retryDelayRegex = regexp.MustCompile(`(?i)(?:retry in |retryDelay[:"\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay reads a provider suggested delay out of an error, either
// from the classified error or from its message. Zero when none is found.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	if d := analysis.RetryAfter(err); d > 0 {
		return d
	}
	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// retry runs fn until it succeeds, fails permanently or runs out of
// attempts. Waits honour ctx.
func (s *Service) retry(ctx context.Context, kind analysis.Kind, fn func(ctx context.Context) error) error {
	p := s.retryPolicy
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !analysis.Retryable(err) || attempt == p.MaxAttempts-1 {
			return err
		}
		wait := p.Backoff(attempt, ExtractRetryDelay(err))
		s.log.Warn("model call failed, retrying",
			zap.String("kind", kind.String()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return classifyContext(ctx, err)
		case <-time.After(wait):
		}
	}
	return err
}
