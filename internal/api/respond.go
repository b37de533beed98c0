package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/digkill/petdance/internal/auth"
	"github.com/digkill/petdance/internal/payments"
	"github.com/digkill/petdance/internal/service"
	"github.com/digkill/petdance/internal/videogen"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Hint    string   `json:"hint,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a plain 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr      *service.ConfigError
		providerErr *videogen.ProviderError
		jobErr      *videogen.JobError
	)
	switch {
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "service is not fully configured",
			Code:    "not_configured",
			Missing: cfgErr.Missing,
			Hint:    cfgErr.Hint,
		})
	case errors.Is(err, service.ErrCreditsRequired):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "not enough credits", Code: "credits_required"})
	case errors.Is(err, service.ErrUnknownStyle), errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, service.ErrPlanNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "plan_not_found"})
	case errors.Is(err, service.ErrReferralInvalid), errors.Is(err, service.ErrReferralExhausted):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "referral_rejected"})
	case errors.Is(err, service.ErrReferralRedeemed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "referral_redeemed"})
	case errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, payments.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid signature", Code: "invalid_signature"})
	case errors.As(err, &providerErr):
		s.Log.Warn("video provider error", "err", err, "path", r.URL.Path)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "video provider rejected the request", Code: "provider_error", Detail: providerErr.Detail})
	case errors.As(err, &jobErr) && errors.Is(err, videogen.ErrJobTimedOut):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "video generation timed out", Code: "job_timed_out", Detail: jobErr.TaskID})
	case errors.Is(err, videogen.ErrJobFailed):
		detail := ""
		if jobErr != nil {
			detail = jobErr.Message
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "video generation failed", Code: "job_failed", Detail: detail})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request timed out", Code: "timeout"})
	default:
		s.Log.Error("request failed", "err", err, "path", r.URL.Path)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", service.ErrInvalidInput, msg)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func parseLimit(r *http.Request, fallback int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return fallback
}
