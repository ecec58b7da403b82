package enrich

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/infra/metrics"
	"github.com/osa030/replaybox/internal/infra/spotify"
)

// withRetry runs fn, retrying the identical request after each rate-limit
// response until MaxAttempts attempts have been made. Other errors return at once.
func (e *Enricher) withRetry(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		rl, limited := spotify.AsRateLimit(err)
		if !limited {
			return err
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		wait := e.backoff(attempt, rl.RetryAfter)
		zlog.Warn().Msgf("%s request rate limited (attempt %d/%d), waiting %s", kind, attempt, e.cfg.MaxAttempts, wait)
		metrics.RecordRateLimitWait(wait)
		if serr := e.sleep(ctx, wait); serr != nil {
			return errors.Wrap(serr, "interrupted while waiting out rate limit")
		}
	}
	return errors.Wrapf(err, "rate limit retries exhausted after %d attempts", e.cfg.MaxAttempts)
}

// backoff honors a server hint within (0, MaxBackoff]; otherwise it doubles
// BaseBackoff per attempt up to MaxBackoff.
func (e *Enricher) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 && retryAfter <= e.cfg.MaxBackoff {
		return retryAfter
	}
	d := e.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.cfg.MaxBackoff {
			return e.cfg.MaxBackoff
		}
	}
	return min(d, e.cfg.MaxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
