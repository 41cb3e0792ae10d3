// Package userstore persists user profiles and per-session memories in
// SQLite. Memories feed the prompt builder so consecutive sessions stay
// coherent.
package userstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mindwave-labs/mindwave-core/internal/config"
	_ "modernc.org/sqlite"
)

// Profile describes a meditation user.
type Profile struct {
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Occupation  string            `json:"occupation,omitempty"`
	Level       string            `json:"meditation_level"`
	Preferences map[string]string `json:"preferences,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// SessionMemory is the stored summary of one completed session.
type SessionMemory struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Summary   string    `json:"summary"`
	Technique string    `json:"technique_used,omitempty"`
	Feedback  string    `json:"user_feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQLite-backed profile and memory tables.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store, creating the data directory and schema as
// needed, and prunes memories past retention.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log.With(slog.String("component", "userstore")), clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		s.log.Warn("prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    occupation TEXT,
    level TEXT NOT NULL,
    preferences TEXT,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS session_memories (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    date TEXT NOT NULL,
    summary TEXT NOT NULL,
    technique TEXT,
    feedback TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_user_created ON session_memories(user_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertProfile writes a profile, replacing any previous row.
func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("profile user_id must not be empty")
	}
	if p.Name == "" {
		p.Name = "friend"
	}
	if p.Level == "" {
		p.Level = "beginner"
	}
	prefs, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles(user_id, name, occupation, level, preferences, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name=excluded.name, occupation=excluded.occupation,
		   level=excluded.level, preferences=excluded.preferences,
		   updated_at=excluded.updated_at`,
		p.UserID, p.Name, p.Occupation, p.Level, string(prefs), s.clock().UTC())
	return err
}

// GetProfile returns the profile for userID; the bool reports existence.
func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, occupation, level, preferences, updated_at
		 FROM profiles WHERE user_id = ?`, userID)
	var p Profile
	var prefs, updated string
	if err := row.Scan(&p.UserID, &p.Name, &p.Occupation, &p.Level, &prefs, &updated); err != nil {
		if err == sql.ErrNoRows {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	if prefs != "" && prefs != "null" {
		if err := json.Unmarshal([]byte(prefs), &p.Preferences); err != nil {
			return Profile{}, false, fmt.Errorf("decode preferences: %w", err)
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		p.UpdatedAt = ts
	}
	return p, true, nil
}

// GetOrCreateDefault returns the profile for userID, creating a beginner
// profile on first contact.
func (s *Store) GetOrCreateDefault(ctx context.Context, userID string) (Profile, error) {
	p, ok, err := s.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if ok {
		return p, nil
	}
	p = Profile{UserID: userID, Name: "friend", Level: "beginner"}
	if err := s.UpsertProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	s.log.Info("created default profile", slog.String("user_id", userID))
	return p, nil
}

// SaveSessionMemory records the outcome of one session, replacing any
// earlier record for the same session.
func (s *Store) SaveSessionMemory(ctx context.Context, m SessionMemory) error {
	if m.SessionID == "" || m.UserID == "" {
		return fmt.Errorf("session memory requires session_id and user_id")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock().UTC()
	}
	if m.Date == "" {
		m.Date = m.CreatedAt.Format("2006-01-02")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_memories(session_id, user_id, date, summary, technique, feedback, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   summary=excluded.summary, technique=excluded.technique,
		   feedback=excluded.feedback`,
		m.SessionID, m.UserID, m.Date, m.Summary, m.Technique, m.Feedback, m.CreatedAt)
	return err
}

// RelevantHistory returns up to n recent memories for userID, the ones
// sharing vocabulary with query first. Plain recency breaks ties, so with a
// blank query this degrades to "latest sessions".
func (s *Store) RelevantHistory(ctx context.Context, userID, query string, n int) ([]SessionMemory, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, date, summary, technique, feedback, created_at
		 FROM session_memories WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT 25`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []SessionMemory
	for rows.Next() {
		var m SessionMemory
		var created string
		if err := rows.Scan(&m.SessionID, &m.UserID, &m.Date, &m.Summary, &m.Technique, &m.Feedback, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.CreatedAt = ts
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tokens := strings.Fields(strings.ToLower(query))
	score := func(m SessionMemory) int {
		text := strings.ToLower(m.Summary + " " + m.Technique)
		total := 0
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				total++
			}
		}
		return total
	}
	sort.SliceStable(memories, func(i, j int) bool {
		return score(memories[i]) > score(memories[j])
	})
	if len(memories) > n {
		memories = memories[:n]
	}
	return memories, nil
}

// Prune deletes memories older than the configured retention window.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_memories WHERE created_at < ?`, cutoff.UTC())
	return err
}
