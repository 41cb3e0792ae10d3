package llm

import (
	"context"
	"time"
)

// mockGenerator streams a short canned meditation script, with pause markup,
// so the whole pipeline can run without a model backend.
type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

var mockScript = []string{
	"Welcome. ",
	"Settle into a comfortable position.",
	"[3s]",
	"Take a slow breath in, ",
	"and let it go.",
	"[5s]",
	"Notice the weight of your body. ",
	"You are exactly where you need to be.",
}

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	start := time.Now()
	for i, piece := range mockScript {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
		if err := consumer(Chunk{
			SessionID: req.SessionID,
			Content:   piece,
			Partial:   i < len(mockScript)-1,
			Latency:   time.Since(start),
		}); err != nil {
			return err
		}
	}
	return nil
}
