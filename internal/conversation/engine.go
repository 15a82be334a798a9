package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shoptalk/shoptalk/internal/history"
	"github.com/shoptalk/shoptalk/internal/nl2sql"
	"github.com/shoptalk/shoptalk/internal/observability"
	"github.com/shoptalk/shoptalk/internal/query"
	"github.com/shoptalk/shoptalk/internal/schema"
)

// HistoryStore is the slice of the history layer the engine needs.
type HistoryStore interface {
	Append(ctx context.Context, in history.AppendInput) (history.Message, error)
	LoadMessages(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
}

type Config struct {
	Catalog    *schema.Catalog
	Translator nl2sql.Translator
	Executor   query.Engine
	History    HistoryStore
	Logger     *slog.Logger

	// ReplayLimit bounds how many persisted messages seed a turn when
	// the caller supplies no in-memory history.
	ReplayLimit int
	// ContextWindow bounds how many prior turns the translator sees.
	ContextWindow int
	// RowLimit caps warehouse result sizes. Zero means unlimited.
	RowLimit int

	now func() time.Time
}

// Engine drives one conversation turn at a time through the pipeline.
// Turns for different sessions may run concurrently; the engine itself
// holds no per-session state.
type Engine struct {
	cfg Config
	now func() time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReplayLimit <= 0 {
		cfg.ReplayLimit = 10
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 7
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, now: now}, nil
}

type stage int

const (
	stageUnderstand stage = iota
	stageGenerateSQL
	stageExecute
	stageFormat
	stageHandleError
	stageEnd
)

// turnState is the in-flight state of a single turn. Every stage reads
// and mutates it; the first stage to set errText routes the turn into
// the error path.
type turnState struct {
	messages    []Message
	question    string
	contextText string
	sql         string
	sqlValid    bool
	result      query.Result
	queryCount  int
	errText     string
}

// ProcessMessage runs one user utterance through the pipeline. The turn
// never fails outright: pipeline errors surface as a failed QueryResult
// and history write failures only degrade the persisted transcript.
func (e *Engine) ProcessMessage(ctx context.Context, sessionID, userMessage string, existing []Message) QueryResult {
	var messages []Message
	if len(existing) > 0 {
		messages = append(messages, existing...)
	} else {
		records, err := e.cfg.History.LoadMessages(ctx, sessionID, e.cfg.ReplayLimit)
		if err != nil {
			e.cfg.Logger.Error("replay history failed", "session_id", sessionID, "error", err)
		} else {
			messages = FromHistory(records)
		}
	}
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})

	st := &turnState{messages: messages, question: userMessage}
	e.run(ctx, st)

	success := st.errText == ""
	e.persistTurn(ctx, sessionID, userMessage, st, success)

	outcome := "success"
	if !success {
		outcome = "error"
	}
	observability.ObserveChatTurn(outcome)

	return QueryResult{
		Question:  userMessage,
		SQL:       st.sql,
		Result:    st.result,
		Success:   success,
		Error:     st.errText,
		Timestamp: e.now(),
	}
}

func (e *Engine) run(ctx context.Context, st *turnState) {
	current := stageUnderstand
	for current != stageEnd {
		switch current {
		case stageUnderstand:
			e.understand(st)
			if st.errText != "" {
				current = stageHandleError
			} else {
				current = stageGenerateSQL
			}
		case stageGenerateSQL:
			e.generateSQL(ctx, st)
			if st.errText != "" {
				current = stageHandleError
			} else {
				current = stageExecute
			}
		case stageExecute:
			e.execute(ctx, st)
			if st.errText != "" {
				current = stageHandleError
			} else {
				current = stageFormat
			}
		case stageFormat:
			e.format(st)
			current = stageEnd
		case stageHandleError:
			e.handleError(st)
			current = stageEnd
		}
	}
}

func (e *Engine) understand(st *turnState) {
	last := len(st.messages) - 1
	if last < 0 || st.messages[last].Role != RoleUser || st.messages[last].Content == "" {
		st.errText = "No valid user message found"
		return
	}
	prior := st.messages[:last]
	st.contextText = BuildContext(prior, LastSQL(prior), e.cfg.ContextWindow)
}

func (e *Engine) generateSQL(ctx context.Context, st *turnState) {
	result, err := e.cfg.Translator.Translate(ctx, nl2sql.Request{
		Question:    st.question,
		SchemaText:  e.cfg.Catalog.PromptText(),
		ContextText: st.contextText,
	})
	if err != nil {
		observability.IncrementTranslationFailure()
		st.errText = fmt.Sprintf("SQL generation failed: %v", err)
		return
	}

	st.sql = SanitizeSQL(result.SQL)
	if err := ValidateSQL(st.sql); err != nil {
		observability.IncrementSQLRejection()
		st.errText = err.Error()
		return
	}
	st.sqlValid = true
}

func (e *Engine) execute(ctx context.Context, st *turnState) {
	result, err := e.cfg.Executor.Execute(ctx, query.Request{SQL: st.sql, RowLimit: e.cfg.RowLimit})
	if err != nil {
		st.errText = fmt.Sprintf("Query execution failed: %v", err)
		return
	}
	st.result = result
	st.queryCount++
}

func (e *Engine) format(st *turnState) {
	st.messages = append(st.messages, Message{
		Role:    RoleAssistant,
		Content: FormatResult(st.result),
		SQL:     st.sql,
	})
}

func (e *Engine) handleError(st *turnState) {
	st.messages = append(st.messages, Message{
		Role:    RoleAssistant,
		Content: "Error: " + st.errText,
	})
}

// persistTurn records the user utterance and the assistant reply. The
// user turn is always written first; a write failure is logged and
// counted but never fails the turn.
func (e *Engine) persistTurn(ctx context.Context, sessionID, userMessage string, st *turnState, success bool) {
	e.append(ctx, history.AppendInput{
		SessionID:   sessionID,
		SessionName: history.SessionName(string(RoleUser), userMessage),
		Role:        string(RoleUser),
		Content:     userMessage,
		Success:     true,
	})

	assistant := history.AppendInput{
		SessionID:   sessionID,
		SessionName: history.SessionName(string(RoleAssistant), ""),
		Role:        string(RoleAssistant),
		Success:     success,
	}
	// Only SQL that passed validation is recorded; a rejected statement
	// must never become the follow-up anchor when the session replays.
	if st.sqlValid {
		assistant.SQL = st.sql
	}
	if success {
		assistant.Content = st.messages[len(st.messages)-1].Content
		assistant.ResultCount = st.result.RowCount()
	} else {
		assistant.Content = st.errText
	}
	e.append(ctx, assistant)
}

func (e *Engine) append(ctx context.Context, in history.AppendInput) {
	if _, err := e.cfg.History.Append(ctx, in); err != nil {
		observability.IncrementHistoryWriteFailure()
		e.cfg.Logger.Error("history write failed",
			"session_id", in.SessionID,
			"role", in.Role,
			"error", err,
		)
	}
}
