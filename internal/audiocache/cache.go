// Package audiocache holds synthesized audio in memory for pull-based
// retrieval, keyed by session and sequence number. Contents are ephemeral
// and vanish on restart.
package audiocache

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	data     []byte
	storedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu           sync.Mutex
	sessions     map[string]map[int]entry
	maxAge       time.Duration
	cleanupEvery time.Duration
	lastCleanup  time.Time
	clock        func() time.Time
	logger       *slog.Logger
}

func New(maxAge, cleanupEvery time.Duration, logger *slog.Logger) *Cache {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if cleanupEvery <= 0 {
		cleanupEvery = time.Hour
	}
	c := &Cache{
		sessions:     make(map[string]map[int]entry),
		maxAge:       maxAge,
		cleanupEvery: cleanupEvery,
		clock:        time.Now,
		logger:       logger.With(slog.String("component", "audiocache")),
	}
	c.lastCleanup = c.clock()
	return c
}

// Store saves the audio for one sequence number, overwriting any previous
// payload. An expiry sweep piggybacks on stores, at most once per interval,
// so the cache needs no background goroutine.
func (c *Cache) Store(sessionID string, seq int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunks := c.sessions[sessionID]
	if chunks == nil {
		chunks = make(map[int]entry)
		c.sessions[sessionID] = chunks
	}
	chunks[seq] = entry{data: data, storedAt: c.clock()}

	if c.clock().Sub(c.lastCleanup) > c.cleanupEvery {
		c.cleanupLocked(c.maxAge)
	}
}

// Fetch returns the audio for one sequence number.
func (c *Cache) Fetch(sessionID string, seq int) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunks, ok := c.sessions[sessionID]
	if !ok {
		return nil, false
	}
	e, ok := chunks[seq]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Cleanup removes every session whose oldest chunk has reached maxAge, and
// sessions holding no chunks at all.
func (c *Cache) Cleanup(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked(maxAge)
}

// Sessions reports how many sessions currently hold audio.
func (c *Cache) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Cache) cleanupLocked(maxAge time.Duration) {
	now := c.clock()
	for sessionID, chunks := range c.sessions {
		if len(chunks) == 0 {
			delete(c.sessions, sessionID)
			continue
		}
		var oldest time.Time
		for _, e := range chunks {
			if oldest.IsZero() || e.storedAt.Before(oldest) {
				oldest = e.storedAt
			}
		}
		if now.Sub(oldest) >= maxAge {
			delete(c.sessions, sessionID)
			c.logger.Info("evicted expired session audio",
				slog.String("session_id", sessionID),
				slog.Int("chunks", len(chunks)))
		}
	}
	c.lastCleanup = now
}
