// Package history defines the durable conversation record: sessions and
// the messages exchanged within them.
package history

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("history: not found")

// Session is one conversation thread.
type Session struct {
	ID           string    `json:"session_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Message is one persisted turn within a session.
type Message struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	SQL         string    `json:"sql,omitempty"`
	ResultCount int       `json:"result_count"`
	Success     bool      `json:"success"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppendInput carries one message append. SessionName is only used when
// the append creates the session.
type AppendInput struct {
	SessionID   string
	SessionName string
	Role        string
	Content     string
	SQL         string
	ResultCount int
	Success     bool
}

const maxSessionNameLen = 40

// SessionName derives a display name for a new session from its first
// message. Short or non-user openings fall back to a generic name.
func SessionName(role, content string) string {
	if role != "user" {
		return "New Chat"
	}
	name := strings.TrimSpace(content)
	// Truncate by runes so a multi-byte character never gets split.
	if runes := []rune(name); len(runes) > maxSessionNameLen {
		name = string(runes[:maxSessionNameLen])
	}
	name = strings.TrimRight(name, "?.!, ")
	if utf8.RuneCountInString(name) < 10 {
		return "New Conversation"
	}
	return name
}
