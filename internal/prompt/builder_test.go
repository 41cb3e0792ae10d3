package prompt

import (
	"strings"
	"testing"
)

func TestBuildRendersContext(t *testing.T) {
	b := NewBuilder()
	got, err := b.Build(Input{
		UserName:          "Ada",
		LocalTime:         "22:30",
		Weather:           "light rain",
		FeelingInput:      "too tired to sleep",
		MemorySummary:     "[2026-08-12] struggled with insomnia, liked the body scan",
		KnowledgeSnippets: "Body scan: move attention from toes to crown.",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"Ada", "22:30", "light rain", "too tired to sleep", "body scan", "[5s]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestBuildDefaults(t *testing.T) {
	b := NewBuilder()
	got, err := b.Build(Input{FeelingInput: "anxious"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(got, "friend") {
		t.Fatal("blank user name must fall back to a friendly default")
	}
	if !strings.Contains(got, "No previous sessions found.") {
		t.Fatal("blank memory must render its placeholder")
	}
	if !strings.Contains(got, "No specific knowledge retrieved.") {
		t.Fatal("blank knowledge must render its placeholder")
	}
}
