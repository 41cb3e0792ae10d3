package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"

	"github.com/mindwave-labs/mindwave-core/internal/config"
)

// execSynth shells out to a local synthesis command. The command reads one
// JSON request on stdin and writes newline-delimited JSON responses carrying
// base64 PCM. The collected PCM is wrapped in a WAV container so clients can
// play it directly and durations decode exactly.
type execSynth struct {
	cmd        []string
	voice      string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

func NewExecSynth(cfg config.TTSConfig) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	return &execSynth{cmd: args, voice: cfg.Voice, sampleRate: sampleRate, channels: channels}, nil
}

func (e *execSynth) SynthesizeStream(ctx context.Context, text, voice string, yield func([]byte) error) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if voice == "" {
		voice = e.voice
	}
	payload, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      voice,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	if _, err := stdin.Write(payload); err != nil {
		cmd.Wait()
		return err
	}
	stdin.Close()

	var pcm []byte
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			cmd.Wait()
			return fmt.Errorf("decode tts response: %w", err)
		}
		chunk, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			cmd.Wait()
			return fmt.Errorf("decode tts pcm: %w", err)
		}
		pcm = append(pcm, chunk...)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("tts command failed: %w", err)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	wavBytes, err := wrapPCMInWav(pcm, e.sampleRate, e.channels)
	if err != nil {
		return err
	}
	return yield(wavBytes)
}

func (e *execSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return collectStream(ctx, e, text, voice)
}

func (e *execSynth) Voices() []string {
	if e.voice == "" {
		return nil
	}
	return []string{e.voice}
}

func (e *execSynth) Format() string { return "wav" }

// wrapPCMInWav writes 16-bit little-endian PCM into a WAV container. The
// encoder needs a seekable writer to patch the header, so a temp file is
// used and read back.
func wrapPCMInWav(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}
	file, err := os.CreateTemp("", "mindwave_tts_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return os.ReadFile(file.Name())
}
