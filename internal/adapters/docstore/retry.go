package docstore

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/pkg/metrics"
)

const maxBackoff = time.Second

type retryPolicy struct {
	attempts int
	base     time.Duration
	backend  string
}

// run calls attempt until it returns something other than ErrConflict.
func (p retryPolicy) run(ctx context.Context, op string, attempt func() error) error {
	delay := p.base
	for i := 1; ; i++ {
		err := attempt()
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		metrics.RecordTxConflict(p.backend)
		if i >= p.attempts {
			metrics.RecordTxExhausted(p.backend)
			return apperr.WrapKind(op, apperr.ErrTransient, err)
		}
		if delay > 0 {
			t := time.NewTimer(jitter(delay))
			select {
			case <-ctx.Done():
				t.Stop()
				return apperr.WrapKind(op, apperr.ErrTransient, ctx.Err())
			case <-t.C:
			}
			delay = min(delay*2, maxBackoff)
		}
	}
}

// jitter spreads d over [d/2, d] so conflicting writers do not retry in step.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + rand.N(d-half+1)
}
