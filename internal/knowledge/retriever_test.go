package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSnippet(t *testing.T, dir, name, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o600); err != nil {
		t.Fatalf("write snippet: %v", err)
	}
}

func TestFileRetrieverRanksByOverlap(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "breathing.md", "Box breathing calms anxiety: inhale four counts, hold, exhale.")
	writeSnippet(t, dir, "bodyscan.md", "Body scan for fatigue and sleep: move attention from toes upward.")
	writeSnippet(t, dir, "walking.md", "Walking meditation for restlessness.")

	r, err := NewFileRetriever(dir)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	snippets, err := r.Retrieve(context.Background(), "anxiety and shallow breathing", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(snippets) == 0 {
		t.Fatal("expected at least one snippet")
	}
	if !strings.Contains(snippets[0], "Box breathing") {
		t.Fatalf("best snippet = %q", snippets[0])
	}
}

func TestFileRetrieverNoMatches(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "breathing.md", "Box breathing calms anxiety.")

	r, err := NewFileRetriever(dir)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	snippets, err := r.Retrieve(context.Background(), "zzzz", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(snippets) != 0 {
		t.Fatalf("expected no snippets, got %d", len(snippets))
	}
}

func TestFileRetrieverRejectsMissingDir(t *testing.T) {
	if _, err := NewFileRetriever(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestNoopRetriever(t *testing.T) {
	snippets, err := NewNoop().Retrieve(context.Background(), "anything", 3)
	if err != nil || snippets != nil {
		t.Fatalf("noop = %v, %v", snippets, err)
	}
}
