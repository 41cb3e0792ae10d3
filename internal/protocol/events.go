// Package protocol defines the wire-level types shared between the
// meditation pipeline, the HTTP stream surface, and the message bus.
package protocol

import "time"

// Stream event types, in the order a client may observe them.
const (
	EventSessionStart = "session_start"
	EventText         = "text"
	EventPause        = "pause"
	EventAudioRef     = "audio_ref"
	EventDone         = "done"
	EventError        = "error"
)

// StreamEvent is one event on a meditation stream. Seq is 1-based and
// strictly increasing within a stream; session_start and error carry no Seq.
type StreamEvent struct {
	Type      string  `json:"type"`
	Seq       int     `json:"seq,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	Content   string  `json:"content,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	URL       string  `json:"url,omitempty"`
	Text      string  `json:"text,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Bus subjects for session lifecycle announcements.
const (
	SubjectSessionStarted   = "meditation.session.started"
	SubjectSessionCompleted = "meditation.session.completed"
	SubjectSessionFailed    = "meditation.session.failed"
)

// SessionAnnouncement is broadcast on the bus when a session starts or ends.
type SessionAnnouncement struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Segments  int       `json:"segments,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
