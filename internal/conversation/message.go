// Package conversation runs the chat pipeline: it builds conversational
// context, asks the translator for SQL, gates and executes it, and
// formats the answer, persisting every turn along the way.
package conversation

import (
	"time"

	"github.com/shoptalk/shoptalk/internal/history"
	"github.com/shoptalk/shoptalk/internal/query"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one in-flight conversation turn.
type Message struct {
	Role    Role
	Content string
	SQL     string
}

// QueryResult is the per-turn outcome returned to the caller.
type QueryResult struct {
	Question  string       `json:"question"`
	SQL       string       `json:"sql"`
	Result    query.Result `json:"result"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// FromHistory converts persisted messages into in-flight ones.
func FromHistory(records []history.Message) []Message {
	messages := make([]Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, Message{
			Role:    Role(record.Role),
			Content: record.Content,
			SQL:     record.SQL,
		})
	}
	return messages
}
