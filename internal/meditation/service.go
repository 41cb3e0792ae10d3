// Package meditation orchestrates script generation: it resolves the user's
// profile, recalls session memories, retrieves knowledge, builds the prompt
// and streams the script from the language model.
package meditation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindwave-labs/mindwave-core/internal/config"
	"github.com/mindwave-labs/mindwave-core/internal/knowledge"
	"github.com/mindwave-labs/mindwave-core/internal/llm"
	"github.com/mindwave-labs/mindwave-core/internal/prompt"
	"github.com/mindwave-labs/mindwave-core/internal/userstore"
)

// ContextPayload carries the user's situation for one meditation request.
type ContextPayload struct {
	UserID       string         `json:"user_id"`
	FeelingInput string         `json:"user_feeling_input"`
	Context      CurrentContext `json:"current_context"`
	Voice        string         `json:"voice,omitempty"`
}

type CurrentContext struct {
	LocalTime string `json:"local_time"`
	Weather   string `json:"weather"`
	Location  string `json:"location"`
}

type Service struct {
	store     *userstore.Store
	knowledge knowledge.Retriever
	generator llm.Generator
	prompts   *prompt.Builder
	cfg       config.LLMConfig
	logger    *slog.Logger
	clock     func() time.Time
}

func NewService(store *userstore.Store, retriever knowledge.Retriever, generator llm.Generator, cfg config.LLMConfig, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		knowledge: retriever,
		generator: generator,
		prompts:   prompt.NewBuilder(),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "meditation")),
		clock:     time.Now,
	}
}

// NewSessionID mints a stream identifier unique across restarts.
func (s *Service) NewSessionID() string {
	return fmt.Sprintf("s_%d_%s", s.clock().Unix(), uuid.NewString()[:6])
}

// StreamScript streams raw script text for one session into consumer.
func (s *Service) StreamScript(ctx context.Context, sessionID string, payload ContextPayload, consumer func(text string) error) error {
	system, err := s.buildPrompt(ctx, payload)
	if err != nil {
		return err
	}
	req := llm.Request{
		SessionID:   sessionID,
		System:      system,
		Prompt:      payload.FeelingInput,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
	return s.generator.Generate(ctx, req, func(chunk llm.Chunk) error {
		if chunk.Content == "" {
			return nil
		}
		return consumer(chunk.Content)
	})
}

// GenerateScript produces a complete script in one call.
func (s *Service) GenerateScript(ctx context.Context, sessionID string, payload ContextPayload) (string, error) {
	var out strings.Builder
	err := s.StreamScript(ctx, sessionID, payload, func(text string) error {
		out.WriteString(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// SaveFeedback stores the session outcome for recall in later sessions.
func (s *Service) SaveFeedback(ctx context.Context, m userstore.SessionMemory) error {
	if err := s.store.SaveSessionMemory(ctx, m); err != nil {
		return fmt.Errorf("save session memory: %w", err)
	}
	s.logger.Info("session feedback saved",
		slog.String("session_id", m.SessionID),
		slog.String("user_id", m.UserID))
	return nil
}

// Profile accessors used by the HTTP surface.
func (s *Service) Profile(ctx context.Context, userID string) (userstore.Profile, bool, error) {
	return s.store.GetProfile(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, p userstore.Profile) error {
	return s.store.UpsertProfile(ctx, p)
}

// buildPrompt assembles the system prompt. Memory and knowledge lookups are
// best-effort: the session proceeds without them.
func (s *Service) buildPrompt(ctx context.Context, payload ContextPayload) (string, error) {
	profile, err := s.store.GetOrCreateDefault(ctx, payload.UserID)
	if err != nil {
		return "", fmt.Errorf("resolve profile: %w", err)
	}

	snippets, err := s.knowledge.Retrieve(ctx, payload.FeelingInput, 3)
	if err != nil {
		s.logger.Warn("knowledge retrieval failed", slog.String("error", err.Error()))
	}

	memories, err := s.store.RelevantHistory(ctx, payload.UserID, payload.FeelingInput, 3)
	if err != nil {
		s.logger.Warn("memory retrieval failed", slog.String("error", err.Error()))
	}

	return s.prompts.Build(prompt.Input{
		UserName:          profile.Name,
		LocalTime:         payload.Context.LocalTime,
		Weather:           payload.Context.Weather,
		Location:          payload.Context.Location,
		FeelingInput:      payload.FeelingInput,
		MemorySummary:     formatMemories(memories),
		KnowledgeSnippets: strings.Join(snippets, "\n\n"),
	})
}

func formatMemories(memories []userstore.SessionMemory) string {
	var lines []string
	for _, m := range memories {
		line := fmt.Sprintf("[%s] %s", m.Date, m.Summary)
		if m.Technique != "" {
			line += " (technique: " + m.Technique + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
