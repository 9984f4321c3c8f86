package drive

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Drive enforces a per-user request quota. The limiter paces calls below it
// and backs the rate off further when the server starts rejecting.
const (
	// DefaultQuotaRPS is a conservative pace under the Drive per-user quota.
	DefaultQuotaRPS = 5.0

	quotaInitialBackoff = 1 * time.Second
	quotaMaxBackoff     = 60 * time.Second
	quotaCooldown       = 5 * time.Minute
	minRPSFraction      = 0.25
)

// QuotaLimiter paces remote calls with a token bucket and reduces the rate
// dynamically after quota rejections. A nil limiter disables pacing.
type QuotaLimiter struct {
	limiter *rate.Limiter

	mu                sync.Mutex
	originalRPS       float64
	consecutiveErrors int
	currentBackoff    time.Duration
	lastError         time.Time
}

// NewQuotaLimiter creates a limiter pacing at rps requests per second.
// Non-positive rps selects DefaultQuotaRPS.
func NewQuotaLimiter(rps float64) *QuotaLimiter {
	if rps <= 0 {
		rps = DefaultQuotaRPS
	}
	return &QuotaLimiter{
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		originalRPS: rps,
	}
}

// Wait blocks until the pace allows another remote call, including any active
// quota backoff window. Returns the context's error if it ends first.
func (q *QuotaLimiter) Wait(ctx context.Context) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	remaining := time.Duration(0)
	if q.currentBackoff > 0 {
		remaining = q.currentBackoff - time.Since(q.lastError)
	}
	q.mu.Unlock()

	if remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return q.limiter.Wait(ctx)
}

// RecordError notes a quota rejection: the backoff window doubles and the
// sustained rate drops (75%, 50%, then 25% of the configured pace).
func (q *QuotaLimiter) RecordError() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.consecutiveErrors++
	q.lastError = time.Now()
	if q.currentBackoff == 0 {
		q.currentBackoff = quotaInitialBackoff
	} else {
		q.currentBackoff = time.Duration(float64(q.currentBackoff) * 2)
		if q.currentBackoff > quotaMaxBackoff {
			q.currentBackoff = quotaMaxBackoff
		}
	}

	fraction := 1.0
	switch {
	case q.consecutiveErrors >= 3:
		fraction = minRPSFraction
	case q.consecutiveErrors == 2:
		fraction = 0.5
	default:
		fraction = 0.75
	}
	q.limiter.SetLimit(rate.Limit(q.originalRPS * fraction))
}

// RecordSuccess notes a successful call. After a quiet cooldown period the
// original rate is restored; before that, each success steps the reduced rate
// back up gradually.
func (q *QuotaLimiter) RecordSuccess() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.consecutiveErrors == 0 {
		return
	}
	if time.Since(q.lastError) > quotaCooldown {
		q.consecutiveErrors = 0
		q.currentBackoff = 0
		q.limiter.SetLimit(rate.Limit(q.originalRPS))
		return
	}
	q.consecutiveErrors--
	if q.consecutiveErrors == 0 {
		q.currentBackoff = 0
		q.limiter.SetLimit(rate.Limit(q.originalRPS * 0.5))
	}
}

// isQuotaError reports whether err is a quota or rate rejection from the
// remote. Drive signals these as 429 and as 403 with a rate reason; the 403
// ambiguity errs toward backing off.
func isQuotaError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 429 || apiErr.StatusCode == 403
}
