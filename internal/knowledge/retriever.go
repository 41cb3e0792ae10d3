// Package knowledge retrieves guidance snippets used to ground generated
// scripts. The production deployment points this at a directory of curated
// meditation techniques; a vector store can sit behind the same interface.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Retriever interface {
	// Retrieve returns up to n snippets relevant to query, best first.
	Retrieve(ctx context.Context, query string, n int) ([]string, error)
}

type noopRetriever struct{}

func NewNoop() Retriever { return noopRetriever{} }

func (noopRetriever) Retrieve(context.Context, string, int) ([]string, error) {
	return nil, nil
}

// FileRetriever treats every markdown file in a directory as one snippet
// and ranks snippets by keyword overlap with the query.
type FileRetriever struct {
	dir string
}

func NewFileRetriever(dir string) (*FileRetriever, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge dir %s is not a directory", dir)
	}
	return &FileRetriever{dir: dir}, nil
}

func (r *FileRetriever) Retrieve(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(r.dir, "*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	queryTokens := tokenize(query)
	type scored struct {
		text  string
		score int
	}
	var candidates []scored
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read snippet %s: %w", filepath.Base(path), err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		if score := overlap(queryTokens, text); score > 0 {
			candidates = append(candidates, scored{text: text, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	snippets := make([]string, len(candidates))
	for i, c := range candidates {
		snippets[i] = c.text
	}
	return snippets, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '.' ||
			r == '，' || r == '。' || r == '！' || r == '？' || r == '!' || r == '?'
	})
}

// overlap counts query tokens present in text. CJK input rarely splits into
// tokens, so single multi-rune tokens still match by substring.
func overlap(queryTokens []string, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, tok := range queryTokens {
		if strings.Contains(lower, tok) {
			score++
		}
	}
	return score
}
