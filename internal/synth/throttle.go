package synth

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// throttled enforces a client-side floor between backend requests so bursts
// of short sentences do not trip provider rate limits.
type throttled struct {
	next    Synthesizer
	limiter *rate.Limiter
}

// Throttle wraps next with a requests-per-minute cap. A non-positive cap
// returns next unchanged.
func Throttle(next Synthesizer, requestsPerMinute int) Synthesizer {
	if requestsPerMinute <= 0 {
		return next
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &throttled{next: next, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (t *throttled) SynthesizeStream(ctx context.Context, text, voice string, yield func([]byte) error) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.SynthesizeStream(ctx, text, voice, yield)
}

func (t *throttled) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Synthesize(ctx, text, voice)
}

func (t *throttled) Voices() []string { return t.next.Voices() }

func (t *throttled) Format() string { return t.next.Format() }
