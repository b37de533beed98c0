package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/service"
)

type planRequest struct {
	Code            string `json:"code"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Currency        string `json:"currency"`
	PriceMinorUnits int    `json:"price_minor_units"`
	Credits         int    `json:"credits"`
	StripePriceID   string `json:"stripe_price_id"`
	Recurring       bool   `json:"recurring"`
	IsActive        *bool  `json:"is_active"`
}

type planUpdateRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Currency        *string `json:"currency"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Credits         *int    `json:"credits"`
	StripePriceID   *string `json:"stripe_price_id"`
	Recurring       *bool   `json:"recurring"`
	IsActive        *bool   `json:"is_active"`
}

type referralRequest struct {
	Code    string `json:"code"`
	MaxUses int    `json:"max_uses"`
}

type referralUpdateRequest struct {
	Code    *string `json:"code"`
	MaxUses *int    `json:"max_uses"`
	Uses    *int    `json:"uses"`
}

type grantRequest struct {
	UserID    string              `json:"user_id"`
	Amount    int                 `json:"amount"`
	Source    models.CreditSource `json:"source"`
	Reference string              `json:"reference"`
}

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.Plans.List(r.Context(), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleAdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	plan, err := s.Plans.Create(r.Context(), service.CreatePlanInput{
		Code:            req.Code,
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		StripePriceID:   req.StripePriceID,
		Recurring:       req.Recurring,
		IsActive:        req.IsActive,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleAdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req planUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	plan, err := s.Plans.Update(r.Context(), id, service.UpdatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		StripePriceID:   req.StripePriceID,
		Recurring:       req.Recurring,
		IsActive:        req.IsActive,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAdminDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.Plans.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminListReferrals(w http.ResponseWriter, r *http.Request) {
	codes, err := s.Referrals.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

func (s *Server) handleAdminCreateReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	code, err := s.Referrals.Create(r.Context(), req.Code, req.MaxUses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

func (s *Server) handleAdminUpdateReferral(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req referralUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	code, err := s.Referrals.Update(r.Context(), id, service.UpdateReferralInput{
		Code:    req.Code,
		MaxUses: req.MaxUses,
		Uses:    req.Uses,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

func (s *Server) handleAdminDeleteReferral(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.Referrals.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminGrantCredits appends a manual ledger entry, e.g. a refund after
// a failed job or a goodwill grant.
func (s *Server) handleAdminGrantCredits(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Source == "" {
		req.Source = models.CreditSourceFree
	}
	entry, err := s.Ledger.Add(r.Context(), req.UserID, req.Amount, req.Source, req.Reference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Log.Info("admin credit grant", "user_id", req.UserID, "amount", req.Amount, "source", req.Source)
	writeJSON(w, http.StatusCreated, entry)
}
