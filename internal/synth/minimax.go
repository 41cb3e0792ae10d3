package synth

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mindwave-labs/mindwave-core/internal/config"
)

const minimaxDefaultURL = "https://api.minimax.chat/v1/t2a_v2"

type minimaxSynth struct {
	apiKey       string
	groupID      string
	model        string
	defaultVoice string
	baseURL      string
	httpClient   *http.Client
}

var minimaxVoices = []string{
	"female-shaonv",
	"female-yujie",
	"male-qn-qingse",
	"male-qn-jingying",
	"presenter_female",
	"presenter_male",
}

type minimaxRequest struct {
	Model        string              `json:"model"`
	Text         string              `json:"text"`
	Stream       bool                `json:"stream"`
	VoiceSetting minimaxVoiceSetting `json:"voice_setting"`
	AudioSetting minimaxAudioSetting `json:"audio_setting"`
}

type minimaxVoiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Volume  float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
}

type minimaxAudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

type minimaxChunk struct {
	Data struct {
		Audio  string `json:"audio"` // hex encoded
		Status int    `json:"status"`
	} `json:"data"`
	// Present only on the trailing summary chunk, which carries no audio.
	ExtraInfo json.RawMessage `json:"extra_info,omitempty"`
	BaseResp  struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

// NewMiniMaxSynth builds a backend for the MiniMax T2A v2 streaming endpoint.
func NewMiniMaxSynth(cfg config.TTSConfig) Synthesizer {
	model := cfg.Model
	if model == "" {
		model = "speech-01-turbo"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = minimaxVoices[0]
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = minimaxDefaultURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &minimaxSynth{
		apiKey:       cfg.APIKey,
		groupID:      cfg.GroupID,
		model:        model,
		defaultVoice: voice,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (s *minimaxSynth) SynthesizeStream(ctx context.Context, text, voice string, yield func([]byte) error) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	payload := minimaxRequest{
		Model:  s.model,
		Text:   text,
		Stream: true,
		VoiceSetting: minimaxVoiceSetting{
			VoiceID: s.resolveVoice(voice),
			Speed:   1.0,
			Volume:  1.0,
		},
		AudioSetting: minimaxAudioSetting{SampleRate: 32000, Bitrate: 128000, Format: "mp3"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode minimax request: %w", err)
	}

	url := s.baseURL
	if s.groupID != "" {
		url += "?GroupId=" + s.groupID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build minimax request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("minimax request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("minimax: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("minimax: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var chunk minimaxChunk
		if err := json.Unmarshal([]byte(strings.TrimSpace(line[len("data:"):])), &chunk); err != nil {
			return fmt.Errorf("decode minimax chunk: %w", err)
		}
		if chunk.BaseResp.StatusCode != 0 {
			if strings.Contains(strings.ToLower(chunk.BaseResp.StatusMsg), "rate limit") {
				return fmt.Errorf("minimax: %s: %w", chunk.BaseResp.StatusMsg, ErrRateLimited)
			}
			return fmt.Errorf("minimax: api error %d: %s", chunk.BaseResp.StatusCode, chunk.BaseResp.StatusMsg)
		}
		// The summary chunk repeats the full audio; only incremental
		// chunks are forwarded.
		if len(chunk.ExtraInfo) > 0 || chunk.Data.Audio == "" {
			continue
		}
		audio, err := hex.DecodeString(chunk.Data.Audio)
		if err != nil {
			return fmt.Errorf("decode minimax audio: %w", err)
		}
		if err := yield(audio); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read minimax stream: %w", err)
	}
	return nil
}

func (s *minimaxSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return collectStream(ctx, s, text, voice)
}

func (s *minimaxSynth) Voices() []string {
	return append([]string(nil), minimaxVoices...)
}

func (s *minimaxSynth) Format() string { return "mp3" }

func (s *minimaxSynth) resolveVoice(voice string) string {
	for _, v := range minimaxVoices {
		if v == voice {
			return voice
		}
	}
	return s.defaultVoice
}
