package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/service"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	database := "ok"
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(ctx); err != nil {
			s.Log.Warn("health check database ping failed", "err", err)
			database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, map[string]any{
		"status":   http.StatusText(status),
		"database": database,
		"providers": map[string]bool{
			"video":           s.Config.VideoConfigured(),
			"payments":        s.Config.PaymentsConfigured(),
			"webhooks":        s.Config.WebhooksConfigured(),
			"prompt_enhancer": s.Config.PromptEnhancerConfigured(),
			"storage":         s.Config.StorageConfigured(),
		},
		"generation_cost": s.Ledger.Cost(),
	})
}

func (s *Server) handleCheckAPIKey(w http.ResponseWriter, r *http.Request) {
	if s.Video == nil || !s.Video.Configured() {
		s.writeError(w, r, service.VideoNotConfigured())
		return
	}
	remaining, err := s.Video.RemainingCredits(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                true,
		"remaining_credits": remaining,
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.DanceStyles())
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.Plans.List(r.Context(), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "read body error")
		return
	}
	if err := s.Checkouts.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		s.Log.Error("stripe webhook", "err", err)
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type meResponse struct {
	User           models.User          `json:"user"`
	Provisioned    bool                 `json:"provisioned"`
	Balance        int                  `json:"balance"`
	GenerationCost int                  `json:"generation_cost"`
	History        []models.CreditEntry `json:"history"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.currentProfile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := meResponse{
		User:           profile.User,
		Provisioned:    profile.Provisioned,
		GenerationCost: s.Ledger.Cost(),
		History:        []models.CreditEntry{},
	}
	if profile.Provisioned {
		if resp.Balance, err = s.Ledger.Balance(r.Context(), profile.User.ID); err != nil {
			s.writeError(w, r, err)
			return
		}
		history, err := s.Ledger.History(r.Context(), profile.User.ID, parseLimit(r, 20))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if history != nil {
			resp.History = history
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	profile, err := s.currentProfile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	videos, err := s.Generations.Videos(r.Context(), profile.User.ID, parseLimit(r, 50))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	writeJSON(w, http.StatusOK, videos)
}

type generateJSONRequest struct {
	ImageURL string `json:"image_url"`
	Style    string `json:"style"`
	Hint     string `json:"hint"`
}

type generateResponse struct {
	VideoURL string        `json:"video_url"`
	Video    *models.Video `json:"video"`
	Prompt   string        `json:"prompt"`
	Balance  int           `json:"balance"`
}

// handleGenerateVideo blocks for the whole provider job. Clients that go away
// cancel the job through the request context and are not charged.
func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	profile, err := s.currentProfile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.readGenerationRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.Generations.Generate(r.Context(), profile.User.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		VideoURL: result.Video.VideoURL,
		Video:    result.Video,
		Prompt:   result.Prompt,
		Balance:  result.Balance,
	})
}

func (s *Server) readGenerationRequest(w http.ResponseWriter, r *http.Request) (service.GenerationRequest, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var body generateJSONRequest
		if err := decodeJSON(r, &body); err != nil {
			return service.GenerationRequest{}, invalidInput("invalid json body")
		}
		return service.GenerationRequest{Style: body.Style, Hint: body.Hint, ImageURL: body.ImageURL}, nil
	}

	limit := s.Config.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		return service.GenerationRequest{}, invalidInput("photo is too large or the form is malformed")
	}

	req := service.GenerationRequest{
		Style:    r.FormValue("style"),
		Hint:     r.FormValue("hint"),
		ImageURL: r.FormValue("image_url"),
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil
		}
		return req, invalidInput("could not read photo")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return req, invalidInput("could not read photo")
	}
	if int64(len(data)) > limit {
		return req, invalidInput("photo is too large")
	}
	req.Image = data
	req.ContentType = http.DetectContentType(data)
	return req, nil
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	profile, err := s.currentProfile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Plan) == "" {
		s.writeError(w, r, invalidInput("plan is required"))
		return
	}
	if !profile.Provisioned {
		writeMessage(w, http.StatusServiceUnavailable, "account is still being set up, try again shortly")
		return
	}
	result, err := s.Checkouts.CreateCheckout(r.Context(), profile.User, req.Plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleRedeemReferral(w http.ResponseWriter, r *http.Request) {
	profile, err := s.currentProfile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, invalidInput("invalid json body"))
		return
	}
	bonus, err := s.Referrals.Redeem(r.Context(), profile.User.ID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.Ledger.Balance(r.Context(), profile.User.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credited": bonus, "balance": balance})
}
