// Package nl2sql turns natural language questions into warehouse SQL.
package nl2sql

import "context"

// Request carries one translation attempt. SchemaText is the rendered
// warehouse catalog and ContextText the conversational memory block,
// both optional from the translator's point of view.
type Request struct {
	Question    string
	SchemaText  string
	ContextText string
}

// Result is the translated statement plus provenance.
type Result struct {
	SQL      string
	Provider string
	Model    string
}

// Translator produces SQL for a question. Implementations are expected
// to return raw model output; the conversation layer sanitizes it.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
