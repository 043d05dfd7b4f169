package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gemchat/gemchat/internal/chat"
	"github.com/gemchat/gemchat/internal/provider"
	"github.com/gemchat/gemchat/internal/session"
)

type chatRequest struct {
	Message any `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type validationResponse struct {
	Errors []session.FieldError `json:"errors"`
}

type preferencesResponse struct {
	Success     bool                `json:"success,omitempty"`
	Preferences session.Preferences `json:"preferences"`
}

type historyResponse struct {
	ConversationID string         `json:"conversationId"`
	History        []session.Turn `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	// Non-string messages are rejected here rather than silently emptied.
	msg, ok := req.Message.(string)
	if !ok || strings.TrimSpace(msg) == "" {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: []session.FieldError{
			{Field: "message", Message: "Message cannot be empty"},
		}})
		return
	}

	res, err := s.svc.Chat(r.Context(), s.sessionID(r), msg)
	if err != nil {
		s.writeServiceError(w, r, err, "An error occurred while processing your request.")
		return
	}
	s.setSession(w, res.SessionID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, id, err := s.svc.Preferences(r.Context(), s.sessionID(r))
	if err != nil {
		s.writeServiceError(w, r, err, "Internal server error")
		return
	}
	s.setSession(w, id)
	writeJSON(w, http.StatusOK, preferencesResponse{Preferences: prefs})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := decodeBody(r, &partial); err != nil {
		s.writeDecodeError(w, err)
		return
	}

	prefs, id, err := s.svc.UpdatePreferences(r.Context(), s.sessionID(r), partial)
	if id != "" {
		s.setSession(w, id)
	}
	if err != nil {
		s.writeServiceError(w, r, err, "Invalid preferences data")
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Success: true, Preferences: prefs})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context(), s.sessionID(r)); err != nil {
		s.writeServiceError(w, r, err, "Failed to reset conversation")
		return
	}
	s.clearSession(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation reset successfully",
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns, id, err := s.svc.History(r.Context(), s.sessionID(r))
	if err != nil {
		s.writeServiceError(w, r, err, "Internal server error")
		return
	}
	s.setSession(w, id)
	writeJSON(w, http.StatusOK, historyResponse{ConversationID: id, History: turns})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"uptime":    time.Since(s.started).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"version":   s.cfg.Version,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "Not found", nil)
}

// decodeBody reads a single JSON value from the request body.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return
	}
	writeJSON(w, http.StatusBadRequest, validationResponse{Errors: []session.FieldError{
		{Field: "body", Message: "Invalid JSON body"},
	}})
}

// writeServiceError maps service errors to responses. Validation failures
// carry their field list; everything else is a 500 with summary as the message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, summary string) {
	var ve *chat.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: ve.Fields})
		return
	}

	attrs := []any{"path", r.URL.Path, "err", err}
	var ue *provider.UpstreamError
	if errors.As(err, &ue) {
		attrs = append(attrs, "provider", ue.Provider, "upstream_status", ue.StatusCode)
	}
	s.logger.ErrorContext(r.Context(), "request failed", attrs...)
	s.writeError(w, http.StatusInternalServerError, summary, err)
}

// writeError writes {error, details}; details only in development.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil && s.cfg.development() {
		resp.Details = errorDetails(err)
	}
	writeJSON(w, status, resp)
}

// errorDetails prefers the upstream's own message.
func errorDetails(err error) string {
	var ue *provider.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" && ue.Err == nil {
		return ue.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(payload)
}
