package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gobwas/glob"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": v})
}

func writeError(w http.ResponseWriter, code int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ERROR", "code": reason, "message": msg})
}

// statusFor maps a reason code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case errors.CodeSessionNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidTransition, errors.CodeBudgetExhausted, errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeRateLimitTimeout:
		return http.StatusTooManyRequests
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// internalMessage replaces the text of server faults that are not safe to
// show clients.
const internalMessage = "internal error"

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.Code(err)
	status := statusFor(code)

	args := []any{"method", r.Method, "path", r.URL.Path, "code", code, "error", err}
	switch {
	case errors.IsRejection(err):
		s.logger.Debug("request rejected", args...)
	case status < http.StatusInternalServerError:
		s.logger.Info("request refused", args...)
	case errors.GetSeverity(err) >= errors.SeverityError:
		s.logger.Error("request failed", args...)
	default:
		s.logger.Warn("request failed", args...)
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError && !errors.IsUserFacing(err) {
		msg = internalMessage
	}
	writeError(w, status, code, msg)
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return errors.NewValidationError("malformed request body: " + err.Error())
	}
	return nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg engine.SessionConfig
	if err := decode(r, &cfg); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.Create(r.Context(), cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

type listResponse struct {
	Sessions []string `json:"sessions"`
	// Complete is false when the snapshot backend cannot enumerate its
	// contents and only in-memory sessions are listed.
	Complete bool `json:"complete"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var matcher glob.Glob
	if pattern := r.URL.Query().Get("match"); pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			s.fail(w, r, errors.NewValidationError("invalid match pattern").WithField("match").WithValue(pattern))
			return
		}
		matcher = g
	}

	ids, complete, err := s.engine.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := listResponse{Sessions: make([]string, 0, len(ids)), Complete: complete}
	for _, id := range ids {
		if matcher == nil || matcher.Match(id) {
			out.Sessions = append(out.Sessions, id)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.GetCurrentTurnInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// command runs op and answers with the session state after it.
func (s *Server) command(w http.ResponseWriter, r *http.Request, op func(id string) error) {
	id := r.PathValue("id")
	if err := op(id); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.GetState(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(id string) error { return s.engine.Start(r.Context(), id) })
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(id string) error { return s.engine.Pause(r.Context(), id) })
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(id string) error { return s.engine.Resume(r.Context(), id) })
}

type endRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var body endRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.command(w, r, func(id string) error { return s.engine.EndEarly(r.Context(), id, body.Reason) })
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
