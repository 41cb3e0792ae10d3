// Package pipeline turns a streaming script source into an ordered stream of
// text, pause and audio events. Text for a sentence always reaches the
// client before its audio; synthesis failures degrade that sentence to
// text-only without breaking the stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/mindwave-labs/mindwave-core/internal/audiocache"
	"github.com/mindwave-labs/mindwave-core/internal/config"
	"github.com/mindwave-labs/mindwave-core/internal/protocol"
	"github.com/mindwave-labs/mindwave-core/internal/segmenter"
	"github.com/mindwave-labs/mindwave-core/internal/synth"
)

// Source streams raw script text into consumer as it is generated.
type Source func(ctx context.Context, consumer func(text string) error) error

// Emit delivers one event to the client. An error from Emit aborts the
// stream; the usual cause is a disconnect.
type Emit func(event protocol.StreamEvent) error

type Pipeline struct {
	synth       synth.Synthesizer
	cache       *audiocache.Cache
	logger      *slog.Logger
	urlBase     string
	maxAttempts int
	minWait     time.Duration
	maxWait     time.Duration
	budget      time.Duration

	segments metric.Int64Counter
	retries  metric.Int64Counter
	failures metric.Int64Counter
}

func New(cfg config.PipelineConfig, s synth.Synthesizer, cache *audiocache.Cache, logger *slog.Logger) *Pipeline {
	meter := otel.Meter("mindwave/pipeline")
	segments, _ := meter.Int64Counter("pipeline.segments",
		metric.WithDescription("Sentences accepted by the pipeline"))
	retries, _ := meter.Int64Counter("pipeline.synth_retries",
		metric.WithDescription("Synthesis attempts beyond the first"))
	failures, _ := meter.Int64Counter("pipeline.synth_failures",
		metric.WithDescription("Sentences degraded to text-only"))

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Pipeline{
		synth:       s,
		cache:       cache,
		logger:      logger.With(slog.String("component", "pipeline")),
		urlBase:     strings.TrimRight(cfg.AudioURLBase, "/"),
		maxAttempts: maxAttempts,
		minWait:     time.Duration(cfg.RetryMinWaitMS) * time.Millisecond,
		maxWait:     time.Duration(cfg.RetryMaxWaitMS) * time.Millisecond,
		budget:      time.Duration(cfg.SegmentBudgetMS) * time.Millisecond,
		segments:    segments,
		retries:     retries,
		failures:    failures,
	}
}

// stream holds the per-run state: buffer, sequence counter and dedup set.
type stream struct {
	p         *Pipeline
	sessionID string
	voice     string
	emit      Emit
	emitErr   error
	logger    *slog.Logger
	buffer    string
	seq       int
	seen      map[uint64]struct{}
}

// send delivers one event and remembers a delivery failure so Run does not
// write to a dead connection afterwards.
func (st *stream) send(evt protocol.StreamEvent) error {
	if st.emitErr != nil {
		return st.emitErr
	}
	if err := st.emit(evt); err != nil {
		st.emitErr = err
		return err
	}
	return nil
}

// Run drives one meditation stream from source to emit. Sequence numbers
// are 1-based, strictly increasing and gap-free across text, pause and
// audio_ref events. Run returns the source error (after emitting a single
// error event) or the first emit error; a nil return means the stream ended
// with a done event.
func (p *Pipeline) Run(ctx context.Context, sessionID, voice string, source Source, emit Emit) error {
	st := &stream{
		p:         p,
		sessionID: sessionID,
		voice:     voice,
		emit:      emit,
		logger:    p.logger.With(slog.String("session_id", sessionID)),
		seen:      make(map[uint64]struct{}),
	}
	if err := st.send(protocol.StreamEvent{Type: protocol.EventSessionStart, SessionID: sessionID}); err != nil {
		return err
	}

	err := source(ctx, func(text string) error {
		st.buffer += text
		segments, rest := segmenter.Split(st.buffer)
		st.buffer = rest
		for _, seg := range segments {
			if err := st.process(ctx, seg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || st.emitErr != nil {
			return err
		}
		st.logger.Warn("script generation failed", slog.String("error", err.Error()))
		_ = st.send(protocol.StreamEvent{Type: protocol.EventError, Message: err.Error()})
		return err
	}

	if seg, ok := segmenter.Flush(st.buffer); ok {
		st.buffer = ""
		if err := st.process(ctx, seg); err != nil {
			return err
		}
	}
	return st.send(protocol.StreamEvent{Type: protocol.EventDone, Seq: st.seq + 1})
}

func (st *stream) process(ctx context.Context, seg segmenter.Segment) error {
	switch seg.Kind {
	case segmenter.KindPause:
		st.seq++
		return st.send(protocol.StreamEvent{Type: protocol.EventPause, Seq: st.seq, Duration: seg.Duration})
	case segmenter.KindText:
		return st.processText(ctx, seg.Content)
	}
	return nil
}

func (st *stream) processText(ctx context.Context, content string) error {
	fp := fingerprint(content)
	if _, dup := st.seen[fp]; dup {
		st.logger.Debug("skipping duplicate sentence")
		return nil
	}
	st.seen[fp] = struct{}{}

	st.seq++
	seq := st.seq
	if err := st.send(protocol.StreamEvent{Type: protocol.EventText, Seq: seq, Content: content}); err != nil {
		return err
	}
	st.p.segments.Add(ctx, 1)

	data, err := st.p.synthesizeWithRetry(ctx, st.logger, seq, content, st.voice)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st.p.failures.Add(ctx, 1)
		st.logger.Warn("sentence degraded to text-only",
			slog.Int("seq", seq),
			slog.String("error", err.Error()))
		return nil
	}

	st.p.cache.Store(st.sessionID, seq, data)
	return st.send(protocol.StreamEvent{
		Type:     protocol.EventAudioRef,
		Seq:      seq,
		URL:      fmt.Sprintf("%s/%s/%d", st.p.urlBase, st.sessionID, seq),
		Text:     content,
		Duration: synth.EstimateDuration(data, st.p.synth.Format()),
	})
}

// synthesizeWithRetry runs the bounded attempt loop for one sentence. The
// accumulation buffer is rebuilt on every attempt so partial bytes from a
// failed attempt never leak into the next. The whole loop shares one
// wall-clock budget.
func (p *Pipeline) synthesizeWithRetry(ctx context.Context, logger *slog.Logger, seq int, text, voice string) ([]byte, error) {
	if p.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.minWait
	bo.MaxInterval = p.maxWait
	bo.Multiplier = 2

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		var buf []byte
		err := p.synth.SynthesizeStream(ctx, text, voice, func(chunk []byte) error {
			buf = append(buf, chunk...)
			return nil
		})
		if err == nil && len(buf) == 0 {
			err = synth.ErrEmptyAudio
		}
		if err == nil {
			return buf, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("segment %d: %w", seq, lastErr)
		}
		if attempt == p.maxAttempts {
			break
		}
		p.retries.Add(ctx, 1)
		logger.Warn("synthesis attempt failed",
			slog.Int("seq", seq),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("segment %d: %w", seq, ctx.Err())
		case <-time.After(bo.NextBackOff()):
		}
	}
	return nil, fmt.Errorf("segment %d: synthesis failed after %d attempts: %w", seq, p.maxAttempts, lastErr)
}

// fingerprint hashes trimmed sentence text for duplicate suppression.
func fingerprint(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.TrimSpace(text)))
	return h.Sum64()
}
