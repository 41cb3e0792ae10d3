package synth

import (
	"context"
	"strings"
	"time"
)

// mockSynth produces deterministic fake audio without touching a backend.
// The payload is the UTF-8 text itself, yielded in two chunks, which gives
// downstream duration estimation something proportional to sentence length.
type mockSynth struct{}

func NewMockSynth() Synthesizer {
	return &mockSynth{}
}

func (m *mockSynth) SynthesizeStream(ctx context.Context, text, voice string, yield func([]byte) error) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}
	payload := []byte(text)
	half := len(payload) / 2
	if half > 0 {
		if err := yield(payload[:half]); err != nil {
			return err
		}
	}
	return yield(payload[half:])
}

func (m *mockSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return collectStream(ctx, m, text, voice)
}

func (m *mockSynth) Voices() []string { return []string{"mock"} }

func (m *mockSynth) Format() string { return "raw" }
