package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shoptalk/shoptalk/internal/conversation"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Answer    string    `json:"answer"`
	Columns   []string  `json:"columns"`
	Rows      [][]any   `json:"rows"`
	RowCount  int       `json:"row_count"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Conversation == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "conversation dependencies are not configured", false, nil)
		return
	}

	var request chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	sessionID := strings.TrimSpace(request.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result := deps.Conversation.ProcessMessage(r.Context(), sessionID, request.Message, nil)

	answer := ""
	if result.Success {
		answer = conversation.FormatResult(result.Result)
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: sessionID,
		Question:  result.Question,
		SQL:       result.SQL,
		Answer:    answer,
		Columns:   result.Result.Columns,
		Rows:      result.Result.Rows,
		RowCount:  result.Result.RowCount(),
		Success:   result.Success,
		Error:     result.Error,
		Timestamp: result.Timestamp,
	})
}
