package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PedroOSilv/meetResume/internal/archive"
	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/session"
	"github.com/PedroOSilv/meetResume/internal/transcription"
)

// Machine readable error codes
const (
	CodeInvalidRequest        = "invalid_request"
	CodeEmptyTranscript       = "empty_transcript"
	CodeNoSpeech              = "no_speech"
	CodeSessionNotFound       = "session_not_found"
	CodeNotFound              = "not_found"
	CodeMethodNotAllowed      = "method_not_allowed"
	CodeSessionFinalizing     = "session_finalizing"
	CodeTranscriptionRejected = "transcription_rejected"
	CodeTranscriptionFailed   = "transcription_failed"
	CodeQuotaExceeded         = "quota_exceeded"
	CodeUnauthorized          = "unauthorized"
	CodePayloadTooLarge       = "payload_too_large"
	CodeRateLimited           = "rate_limited"
	CodeAssistantFailed       = "assistant_failed"
	CodeTimeout               = "timeout"
	CodeInternal              = "internal_error"
)

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errRateLimited      = errors.New("too many requests, slow down")
)

// errorResponse is the body of every error reply
type errorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an error to an HTTP status, a machine code and a message
// that is safe to show to clients
func statusFor(err error) (int, string, string) {
	var maxBytes *http.MaxBytesError
	var te *session.TranscriptionError

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, "missing or invalid bearer token"
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed, CodeMethodNotAllowed, err.Error()
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited, err.Error()
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "upload exceeds the size limit"
	case errors.Is(err, session.ErrEmptyTranscript):
		return http.StatusBadRequest, CodeEmptyTranscript, "no transcription available for this session"
	case errors.Is(err, session.ErrNoSpeech):
		return http.StatusBadRequest, CodeNoSpeech, "could not transcribe the audio, check that it contains speech"
	case errors.Is(err, session.ErrValidation):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, CodeSessionNotFound, "session not found"
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "archived session not found"
	case errors.Is(err, session.ErrFinalizing):
		return http.StatusConflict, CodeSessionFinalizing, "session is being finalized"
	case errors.Is(err, transcription.ErrQuotaExceeded):
		return http.StatusPaymentRequired, CodeQuotaExceeded, "transcription provider quota exhausted"
	case errors.As(err, &te):
		if te.Kind == retry.KindTerminal {
			return http.StatusUnprocessableEntity, CodeTranscriptionRejected, "the transcription provider rejected the audio"
		}
		return http.StatusBadGateway, CodeTranscriptionFailed, "transcription provider unavailable, try again"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

// writeError writes the JSON error body. Details are only exposed in development.
func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := statusFor(err)

	resp := errorResponse{
		Status:  "error",
		Error:   code,
		Message: message,
	}
	if h.config.Server.IsDevelopment() {
		resp.Details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	} else {
		h.logger.Debug("Request rejected",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
