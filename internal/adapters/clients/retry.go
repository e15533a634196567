package clients

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

// retryPolicy decides which attempts are repeated and how long to wait
// between them.
type retryPolicy struct {
	attempts   int
	initial    time.Duration
	ceiling    time.Duration
	multiplier float64
	jitter     float64
}

func newRetryPolicy(rc config.RetryConfig) retryPolicy {
	p := retryPolicy{
		attempts:   max(rc.MaxAttempts, 1),
		initial:    rc.InitialInterval,
		ceiling:    rc.MaxInterval,
		multiplier: rc.Multiplier,
		jitter:     rc.JitterFactor,
	}

	if p.jitter < 0 || p.jitter > 1 {
		p.jitter = config.DefaultClientRetryJitterFactor
	}

	return p
}

// backoff is initial * multiplier^retry, capped at the ceiling, with
// symmetric jitter.
func (p retryPolicy) backoff(retry int) time.Duration {
	d := float64(p.initial) * math.Pow(p.multiplier, float64(retry))
	if p.ceiling > 0 {
		d = math.Min(d, float64(p.ceiling))
	}

	spread := rand.Float64()*2 - 1 //nolint:gosec // backoff jitter needs no crypto randomness

	return time.Duration(d + d*p.jitter*spread)
}

// sleep waits out the backoff before retry, or returns ctx's error.
func (p retryPolicy) sleep(ctx context.Context, retry int) error {
	timer := time.NewTimer(p.backoff(retry))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// outcome classifies one attempt. A transient failure comes back as
// (true, err) with the response body already drained.
func (retryPolicy) outcome(resp *http.Response, err error) (retry bool, _ error) {
	if err != nil {
		return transientErr(err), err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		drainAndClose(resp.Body)
		return true, &StatusError{StatusCode: resp.StatusCode}
	}

	return false, nil
}

// transientErr reports whether a transport error is worth another attempt:
// timeouts and dial/read failures are, cancellation is not.
func transientErr(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
