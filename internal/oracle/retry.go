package oracle

import (
	"context"
	"errors"
	"net/http"
	"time"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// RetryConfig configures the bounded backoff §4.3 asks for: "e.g., 4·n
// seconds capped at 30s, max 5 attempts".
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns §4.3's own numbers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   4 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := c.BaseDelay * time.Duration(attempt)
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// withRetry runs fn up to cfg.MaxAttempts times, sleeping cfg.delay(attempt)
// between attempts, stopping early on a non-retryable error or context
// cancellation. The last error (retryable or not) is returned to the caller
// when every attempt is exhausted; Adapter is responsible for turning that
// into a neutral result rather than propagating it further (§4.3, §7).
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(cfg.delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return lastErr
}

// isRetryableError mirrors §7's transport-error category: HTTP 5xx/429,
// timeouts, and anything admitting a Temporary() bool are retried; schema
// and validation errors are not (those get their own single retry in
// Adapter, per §4.3 "on JSON-schema parse errors retries at least once").
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var oracleErr *pkgerrors.OracleError
	if errors.As(err, &oracleErr) {
		return oracleErr.StatusCode >= 500 || oracleErr.StatusCode == http.StatusTooManyRequests
	}

	var timeoutErr *pkgerrors.TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	type temporary interface {
		Temporary() bool
	}
	if temp, ok := err.(temporary); ok {
		return temp.Temporary()
	}

	return false
}

// isSchemaError reports whether err came from decoding a non-conforming
// oracle response body, the case §4.3 asks to retry at least once
// regardless of the transport-retryability check above.
func isSchemaError(err error) bool {
	var oracleErr *pkgerrors.OracleError
	if errors.As(err, &oracleErr) {
		return oracleErr.Code == errCodeSchema
	}
	return false
}

// errCodeSchema tags an OracleError as originating from response-schema
// validation rather than transport.
const errCodeSchema = 1
