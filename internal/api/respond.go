package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
)

type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type successPayload struct {
	Success bool `json:"success"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, successPayload{Success: true})
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAlreadyExists, apperr.KindTargetBusy, apperr.KindVoiceLinkClosed:
		status = http.StatusConflict
	case apperr.KindVoiceTimeout:
		status = http.StatusGatewayTimeout
	case apperr.KindTransport:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}

	s.writeJSON(w, status, errorPayload{Error: err.Error(), Kind: kind.String()})
}

// decodeBody parses a JSON request body into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, apperr.Wrap(apperr.KindValidation, "invalid request body", err))

		return false
	}

	return true
}
