package userstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindwave-labs/mindwave-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "mindwave.db"), RetentionDays: 30}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p := Profile{
		UserID:      "u1",
		Name:        "Ada",
		Occupation:  "engineer",
		Level:       "intermediate",
		Preferences: map[string]string{"voice": "nova"},
	}
	if err := s.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := s.GetProfile(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Name != "Ada" || got.Level != "intermediate" || got.Preferences["voice"] != "nova" {
		t.Fatalf("profile = %+v", got)
	}

	p.Name = "Ada L."
	if err := s.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _, _ = s.GetProfile(ctx, "u1")
	if got.Name != "Ada L." {
		t.Fatalf("name after update = %q", got.Name)
	}
}

func TestGetProfileMissing(t *testing.T) {
	s := openStore(t)
	_, ok, err := s.GetProfile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("missing profile must report ok=false")
	}
}

func TestGetOrCreateDefault(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p, err := s.GetOrCreateDefault(ctx, "newcomer")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if p.Name != "friend" || p.Level != "beginner" {
		t.Fatalf("default profile = %+v", p)
	}
	if _, ok, _ := s.GetProfile(ctx, "newcomer"); !ok {
		t.Fatal("default profile must persist")
	}
}

func TestRelevantHistoryRanking(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	memories := []SessionMemory{
		{SessionID: "s1", UserID: "u1", Summary: "worked on sleep with a body scan", Technique: "body scan"},
		{SessionID: "s2", UserID: "u1", Summary: "breathing exercise for anxiety before a presentation", Technique: "box breathing"},
		{SessionID: "s3", UserID: "u1", Summary: "short gratitude practice", Technique: "gratitude"},
		{SessionID: "other", UserID: "u2", Summary: "anxiety session for someone else", Technique: "box breathing"},
	}
	for _, m := range memories {
		if err := s.SaveSessionMemory(ctx, m); err != nil {
			t.Fatalf("save %s: %v", m.SessionID, err)
		}
	}

	got, err := s.RelevantHistory(ctx, "u1", "anxiety about breathing", 2)
	if err != nil {
		t.Fatalf("relevant history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d memories", len(got))
	}
	if got[0].SessionID != "s2" {
		t.Fatalf("best match = %s", got[0].SessionID)
	}
	for _, m := range got {
		if m.UserID != "u1" {
			t.Fatalf("history leaked across users: %+v", m)
		}
	}
}

func TestSaveSessionMemoryUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	m := SessionMemory{SessionID: "s1", UserID: "u1", Summary: "first draft"}
	if err := s.SaveSessionMemory(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	m.Summary = "with feedback"
	m.Feedback = "calming"
	if err := s.SaveSessionMemory(ctx, m); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := s.RelevantHistory(ctx, "u1", "", 5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "with feedback" || got[0].Feedback != "calming" {
		t.Fatalf("history = %+v", got)
	}
}

func TestPruneByRetentionDays(t *testing.T) {
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "mindwave.db"), RetentionDays: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	s.clock = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.SaveSessionMemory(ctx, SessionMemory{SessionID: "old", UserID: "u1", Summary: "stale"}); err != nil {
		t.Fatalf("save old: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.SaveSessionMemory(ctx, SessionMemory{SessionID: "new", UserID: "u1", Summary: "fresh"}); err != nil {
		t.Fatalf("save new: %v", err)
	}
	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	got, err := s.RelevantHistory(ctx, "u1", "", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "new" {
		t.Fatalf("history after prune = %+v", got)
	}
}
