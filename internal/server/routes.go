package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ilkoid/apichat/pkg/chat"
	"github.com/ilkoid/apichat/pkg/llm"
	"github.com/ilkoid/apichat/pkg/tools"
	"github.com/ilkoid/apichat/pkg/utils"
)

// setupRoutes регистрирует маршруты.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /message", s.handleMessage)
	mux.HandleFunc("DELETE /session", s.handleResetSession)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// handleMessage принимает текст оператора и отвечает HTML текстом ассистента.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "Message is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "Cannot read message")
		return
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "Message is empty")
		return
	}

	session := s.sessions.GetOrCreate(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, session.ID)

	reply, err := s.orchestrator.Send(r.Context(), session, prompt)
	if err != nil {
		status, code := statusFor(err)
		correlationID, _ := r.Context().Value(correlationIDKey).(string)
		utils.Error("Message handling failed",
			"correlation_id", correlationID,
			"session_id", session.ID,
			"code", code,
			"error", err)
		writeError(w, status, code, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, reply.Text)
}

// handleResetSession забывает историю сессии.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_session", SessionHeader+" header is required")
		return
	}
	if !s.sessions.Reset(id) {
		writeError(w, http.StatusNotFound, "unknown_session", "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTools отдаёт декларации, которые видит модель.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Declarations())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"tools":    len(s.orchestrator.Declarations()),
		"sessions": s.sessions.Len(),
	})
}

// statusFor сопоставляет ошибку сообщения HTTP статусу и коду.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrSessionBusy):
		return http.StatusConflict, "session_busy"
	case errors.Is(err, chat.ErrMessageTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, chat.ErrEmptyPrompt):
		return http.StatusBadRequest, "empty_message"
	case errors.Is(err, tools.ErrUnknownTool):
		return http.StatusInternalServerError, "unknown_tool"
	case errors.Is(err, chat.ErrMaxRounds):
		return http.StatusInternalServerError, "max_rounds"
	case errors.Is(err, llm.ErrModelService):
		return http.StatusInternalServerError, "model_error"
	case errors.Is(err, context.Canceled):
		return http.StatusInternalServerError, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Warn("Failed to write JSON response", "error", err)
	}
}
