package meditation

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mindwave-labs/mindwave-core/internal/config"
	"github.com/mindwave-labs/mindwave-core/internal/knowledge"
	"github.com/mindwave-labs/mindwave-core/internal/llm"
	"github.com/mindwave-labs/mindwave-core/internal/userstore"
)

// captureGenerator records the request and streams a fixed script.
type captureGenerator struct {
	lastReq llm.Request
}

func (g *captureGenerator) Generate(ctx context.Context, req llm.Request, consumer func(llm.Chunk) error) error {
	g.lastReq = req
	for _, piece := range []string{"慢慢呼吸。", "[3s]", "放松。"} {
		if err := consumer(llm.Chunk{SessionID: req.SessionID, Content: piece, Partial: true}); err != nil {
			return err
		}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *captureGenerator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := userstore.Open(context.Background(),
		config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db"), RetentionDays: 30}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	gen := &captureGenerator{}
	svc := NewService(store, knowledge.NewNoop(), gen, config.LLMConfig{MaxTokens: 512, Temperature: 0.7}, logger)
	return svc, gen
}

func TestNewSessionIDFormat(t *testing.T) {
	svc, _ := newTestService(t)
	id := svc.NewSessionID()
	if !regexp.MustCompile(`^s_\d+_[0-9a-f-]{6}$`).MatchString(id) {
		t.Fatalf("session id = %q", id)
	}
	if id == svc.NewSessionID() {
		t.Fatal("session ids must be unique")
	}
}

func TestStreamScriptBuildsPersonalizedPrompt(t *testing.T) {
	svc, gen := newTestService(t)
	ctx := context.Background()

	if err := svc.UpdateProfile(ctx, userstore.Profile{UserID: "u1", Name: "Ada", Level: "intermediate"}); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if err := svc.SaveFeedback(ctx, userstore.SessionMemory{
		SessionID: "prev", UserID: "u1",
		Summary: "insomnia session, body scan helped", Technique: "body scan",
	}); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	payload := ContextPayload{
		UserID:       "u1",
		FeelingInput: "insomnia again",
		Context:      CurrentContext{LocalTime: "23:10", Weather: "clear"},
	}
	var script strings.Builder
	err := svc.StreamScript(ctx, "s_1", payload, func(text string) error {
		script.WriteString(text)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if script.String() != "慢慢呼吸。[3s]放松。" {
		t.Fatalf("script = %q", script.String())
	}

	sys := gen.lastReq.System
	for _, want := range []string{"Ada", "23:10", "insomnia again", "body scan"} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
	if gen.lastReq.MaxTokens != 512 {
		t.Fatalf("max tokens = %d", gen.lastReq.MaxTokens)
	}
}

func TestGenerateScriptCreatesDefaultProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	script, err := svc.GenerateScript(ctx, "s_2", ContextPayload{UserID: "fresh", FeelingInput: "restless"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if script == "" {
		t.Fatal("expected a script")
	}
	if _, ok, _ := svc.Profile(ctx, "fresh"); !ok {
		t.Fatal("first contact must create a profile")
	}
}
