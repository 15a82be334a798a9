package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shoptalk/shoptalk/internal/history"
	"github.com/shoptalk/shoptalk/internal/nl2sql"
	"github.com/shoptalk/shoptalk/internal/query"
	"github.com/shoptalk/shoptalk/internal/schema"
)

type stubTranslator struct {
	sql      string
	err      error
	lastReq  nl2sql.Request
	invoked  int
}

func (s *stubTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	s.lastReq = req
	s.invoked++
	if s.err != nil {
		return nl2sql.Result{}, s.err
	}
	return nl2sql.Result{SQL: s.sql, Provider: "stub", Model: "stub"}, nil
}

type stubExecutor struct {
	result  query.Result
	err     error
	lastSQL string
}

func (s *stubExecutor) Execute(_ context.Context, req query.Request) (query.Result, error) {
	s.lastSQL = req.SQL
	if s.err != nil {
		return query.Result{}, s.err
	}
	return s.result, nil
}

type stubHistory struct {
	appended  []history.AppendInput
	persisted []history.Message
	appendErr error
	loadErr   error
	loadLimit int
}

func (s *stubHistory) Append(_ context.Context, in history.AppendInput) (history.Message, error) {
	if s.appendErr != nil {
		return history.Message{}, s.appendErr
	}
	s.appended = append(s.appended, in)
	return history.Message{ID: int64(len(s.appended))}, nil
}

func (s *stubHistory) LoadMessages(_ context.Context, _ string, limit int) ([]history.Message, error) {
	s.loadLimit = limit
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.persisted, nil
}

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	catalog, err := schema.Load(context.Background(), &staticInspector{})
	if err != nil {
		t.Fatalf("schema.Load() error = %v", err)
	}
	return catalog
}

type staticInspector struct{}

func (staticInspector) ListTables(context.Context) ([]string, error) {
	return []string{"olist_master"}, nil
}

func (staticInspector) ListColumns(context.Context, string) ([]string, error) {
	return []string{"order_id", "customer_state", "price"}, nil
}

func newTestEngine(t *testing.T, translator *stubTranslator, executor *stubExecutor, store *stubHistory) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{
		Catalog:    testCatalog(t),
		Translator: translator,
		Executor:   executor,
		History:    store,
		Logger:     slog.New(slog.DiscardHandler),
		now:        func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestProcessMessageSuccessfulAggregate(t *testing.T) {
	translator := &stubTranslator{
		sql: "SELECT customer_state, ROUND(SUM(price), 2) AS total FROM olist_master GROUP BY customer_state ORDER BY total DESC LIMIT 5",
	}
	executor := &stubExecutor{result: query.Result{
		Columns: []string{"customer_state", "total"},
		Rows:    [][]any{{"SP", 100.0}, {"RJ", 80.0}, {"MG", 60.0}, {"RS", 40.0}, {"PR", 20.0}},
	}}
	store := &stubHistory{}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "Top 5 states by sales?", nil)

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.Result.Rows) > 5 {
		t.Fatalf("rows = %d", len(result.Result.Rows))
	}
	if result.SQL != translator.sql {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if translator.lastReq.SchemaText == "" {
		t.Fatal("translator received empty schema")
	}

	if len(store.appended) != 2 {
		t.Fatalf("appended = %d", len(store.appended))
	}
	userTurn, assistantTurn := store.appended[0], store.appended[1]
	if userTurn.Role != "user" || !userTurn.Success {
		t.Fatalf("user turn = %+v", userTurn)
	}
	if userTurn.SessionName != "Top 5 states by sales" {
		t.Fatalf("session name = %q", userTurn.SessionName)
	}
	if assistantTurn.Role != "assistant" || assistantTurn.ResultCount != 5 || !assistantTurn.Success {
		t.Fatalf("assistant turn = %+v", assistantTurn)
	}
	if assistantTurn.Content != "I found 5 results for your query." {
		t.Fatalf("assistant content = %q", assistantTurn.Content)
	}
}

func TestProcessMessageInvalidTranslation(t *testing.T) {
	translator := &stubTranslator{sql: "please clarify"}
	executor := &stubExecutor{}
	store := &stubHistory{}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "hmm?", nil)

	if result.Success {
		t.Fatal("expected failed turn")
	}
	if !strings.Contains(result.Error, "Invalid SQL") {
		t.Fatalf("Error = %q", result.Error)
	}
	if executor.lastSQL != "" {
		t.Fatalf("executor should not run, got %q", executor.lastSQL)
	}
	assistantTurn := store.appended[1]
	if assistantTurn.Success || assistantTurn.Content != result.Error {
		t.Fatalf("assistant turn = %+v", assistantTurn)
	}
}

func TestProcessMessageRejectedSQLNotPersisted(t *testing.T) {
	translator := &stubTranslator{sql: "DELETE FROM olist_master"}
	executor := &stubExecutor{}
	store := &stubHistory{}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "drop everything", nil)

	if result.Success {
		t.Fatal("expected failed turn")
	}
	if result.Error != "Invalid SQL: doesn't start with SELECT" {
		t.Fatalf("Error = %q", result.Error)
	}
	assistantTurn := store.appended[1]
	if assistantTurn.SQL != "" {
		t.Fatalf("rejected SQL must not be persisted, got %q", assistantTurn.SQL)
	}
	if assistantTurn.Success || assistantTurn.Content != result.Error {
		t.Fatalf("assistant turn = %+v", assistantTurn)
	}
}

func TestProcessMessageExecutionFailureKeepsSQL(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT no_such_column FROM olist_master"}
	executor := &stubExecutor{err: errors.New("column no_such_column does not exist")}
	store := &stubHistory{}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "show me that column", nil)

	if result.Success {
		t.Fatal("expected failed turn")
	}
	if result.SQL != "SELECT no_such_column FROM olist_master" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if !strings.Contains(result.Error, "Query execution failed") {
		t.Fatalf("Error = %q", result.Error)
	}
	assistantTurn := store.appended[1]
	if assistantTurn.SQL != result.SQL || assistantTurn.Success {
		t.Fatalf("assistant turn = %+v", assistantTurn)
	}
}

func TestProcessMessageTranslatorFailure(t *testing.T) {
	translator := &stubTranslator{err: errors.New("upstream timeout")}
	store := &stubHistory{}
	engine := newTestEngine(t, translator, &stubExecutor{}, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "anything", nil)

	if result.Success {
		t.Fatal("expected failed turn")
	}
	if !strings.Contains(result.Error, "SQL generation failed") {
		t.Fatalf("Error = %q", result.Error)
	}
}

func TestProcessMessageEmptyUtterance(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT 1 FROM t"}
	store := &stubHistory{}
	engine := newTestEngine(t, translator, &stubExecutor{}, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "", nil)

	if result.Success {
		t.Fatal("expected failed turn")
	}
	if result.Error != "No valid user message found" {
		t.Fatalf("Error = %q", result.Error)
	}
	if translator.invoked != 0 {
		t.Fatal("translator should not be called")
	}
}

func TestProcessMessageReplaysPersistedHistory(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT COUNT(*) FROM olist_master WHERE customer_state = 'SP'"}
	executor := &stubExecutor{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(12)}}}}
	store := &stubHistory{persisted: []history.Message{
		{Role: "user", Content: "orders by state?"},
		{Role: "assistant", Content: "I found 27 results for your query.", SQL: "SELECT customer_state, COUNT(*) FROM olist_master GROUP BY customer_state"},
	}}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "and just for SP?", nil)

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if store.loadLimit != 10 {
		t.Fatalf("replay limit = %d", store.loadLimit)
	}
	if !strings.Contains(translator.lastReq.ContextText, "orders by state?") {
		t.Fatalf("context missing replayed turn:\n%s", translator.lastReq.ContextText)
	}
	if !strings.Contains(translator.lastReq.ContextText, "Last SQL Query: SELECT customer_state") {
		t.Fatalf("context missing last SQL:\n%s", translator.lastReq.ContextText)
	}
}

func TestProcessMessageEmptyCallerHistoryReplays(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT COUNT(*) FROM olist_master"}
	executor := &stubExecutor{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(3)}}}}
	store := &stubHistory{persisted: []history.Message{
		{Role: "user", Content: "orders by state?"},
	}}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "how many overall?", []Message{})

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if store.loadLimit != 10 {
		t.Fatalf("empty caller history should replay from the store, limit = %d", store.loadLimit)
	}
	if !strings.Contains(translator.lastReq.ContextText, "orders by state?") {
		t.Fatalf("context missing replayed turn:\n%s", translator.lastReq.ContextText)
	}
}

func TestProcessMessagePrefersCallerHistory(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT 1 FROM olist_master"}
	executor := &stubExecutor{result: query.Result{Columns: []string{"v"}, Rows: [][]any{{int64(1)}}}}
	store := &stubHistory{loadErr: errors.New("must not be called")}
	engine := newTestEngine(t, translator, executor, store)

	existing := []Message{{Role: RoleUser, Content: "earlier question"}}
	result := engine.ProcessMessage(context.Background(), "sess-1", "follow up", existing)

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if store.loadLimit != 0 {
		t.Fatal("persisted history should not be replayed when caller supplies messages")
	}
	if !strings.Contains(translator.lastReq.ContextText, "earlier question") {
		t.Fatalf("context missing caller history:\n%s", translator.lastReq.ContextText)
	}
}

func TestProcessMessageSurvivesHistoryWriteFailure(t *testing.T) {
	translator := &stubTranslator{sql: "SELECT COUNT(*) FROM olist_master"}
	executor := &stubExecutor{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(99441)}}}}
	store := &stubHistory{appendErr: errors.New("history db down")}
	engine := newTestEngine(t, translator, executor, store)

	result := engine.ProcessMessage(context.Background(), "sess-1", "how many orders in total?", []Message{})

	if !result.Success {
		t.Fatalf("history failure overturned the turn: %q", result.Error)
	}
}
