package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mindwave-labs/mindwave-core/internal/config"
)

type openaiSynth struct {
	client       openai.Client
	model        string
	defaultVoice string
	timeout      time.Duration
}

var openaiVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// NewOpenAISynth builds a backend for the OpenAI speech endpoint or any
// API-compatible server reachable through cfg.BaseURL.
func NewOpenAISynth(cfg config.TTSConfig) Synthesizer {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = openaiVoices[0]
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &openaiSynth{
		client:       openai.NewClient(opts...),
		model:        model,
		defaultVoice: voice,
		timeout:      timeout,
	}
}

func (s *openaiSynth) SynthesizeStream(ctx context.Context, text, voice string, yield func([]byte) error) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.resolveVoice(voice)),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("openai speech: %w", ErrRateLimited)
		}
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := yield(chunk); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("openai speech read: %w", readErr)
		}
	}
}

func (s *openaiSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return collectStream(ctx, s, text, voice)
}

func (s *openaiSynth) Voices() []string {
	return append([]string(nil), openaiVoices...)
}

func (s *openaiSynth) Format() string { return "mp3" }

// resolveVoice falls back to the configured default when the requested
// voice is blank or unknown.
func (s *openaiSynth) resolveVoice(voice string) string {
	for _, v := range openaiVoices {
		if v == voice {
			return voice
		}
	}
	return s.defaultVoice
}
