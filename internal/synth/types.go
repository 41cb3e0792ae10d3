// Package synth provides interchangeable text-to-speech backends behind a
// uniform capability interface.
package synth

import (
	"context"
	"errors"
)

// Synthesizer is the contract every speech backend implements.
type Synthesizer interface {
	// SynthesizeStream yields the audio for text as a finite sequence of
	// byte chunks. The concatenation of the yielded chunks is the complete
	// audio payload for the sentence.
	SynthesizeStream(ctx context.Context, text, voice string, yield func(chunk []byte) error) error
	// Synthesize returns the complete audio for text in one call.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	// Voices lists the voice identifiers the backend accepts. The first
	// entry is the default.
	Voices() []string
	// Format reports the container format of produced audio, e.g. "mp3".
	Format() string
}

var (
	// ErrRateLimited marks a refusal caused by provider rate limiting.
	ErrRateLimited = errors.New("tts backend rate limited")
	// ErrEmptyAudio marks a synthesis that yielded zero bytes without a
	// backend error. Callers treat it as a failure: an empty result is
	// indistinguishable from a silently dropped rate-limited response.
	ErrEmptyAudio = errors.New("tts backend returned no audio")
	// ErrEmptyText rejects synthesis of blank input.
	ErrEmptyText = errors.New("text must not be empty")
)

// collectStream runs a backend stream and accumulates its chunks. Shared by
// the Synthesize implementations.
func collectStream(ctx context.Context, s Synthesizer, text, voice string) ([]byte, error) {
	var buf []byte
	err := s.SynthesizeStream(ctx, text, voice, func(chunk []byte) error {
		buf = append(buf, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}
