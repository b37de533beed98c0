package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/digkill/petdance/internal/config"
	"github.com/digkill/petdance/internal/models"
)

type planStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	GetByCode(ctx context.Context, code string) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type PlanService struct {
	cfg  config.Config
	repo planStore
}

type CreatePlanInput struct {
	Code            string
	Title           string
	Description     string
	Currency        string
	PriceMinorUnits int
	Credits         int
	StripePriceID   string
	Recurring       bool
	IsActive        *bool
}

type UpdatePlanInput struct {
	Title           *string
	Description     *string
	Currency        *string
	PriceMinorUnits *int
	Credits         *int
	StripePriceID   *string
	Recurring       *bool
	IsActive        *bool
}

func NewPlanService(cfg config.Config, repo planStore) *PlanService {
	return &PlanService{cfg: cfg, repo: repo}
}

func (s *PlanService) defaultPlans() []models.Plan {
	return []models.Plan{
		{
			Code:            "starter",
			Title:           "Starter pack",
			Description:     "10 dance videos, one-time purchase",
			Currency:        s.cfg.PaymentCurrency,
			PriceMinorUnits: 499,
			Credits:         10,
			StripePriceID:   s.cfg.StripePriceStarter,
			IsActive:        true,
		},
		{
			Code:            "pro",
			Title:           "Pro monthly",
			Description:     "50 dance videos every month",
			Currency:        s.cfg.PaymentCurrency,
			PriceMinorUnits: 1999,
			Credits:         50,
			StripePriceID:   s.cfg.StripePricePro,
			Recurring:       true,
			IsActive:        true,
		},
	}
}

// EnsureDefaultPlans seeds the starter and pro plans and backfills their
// Stripe price ids once they appear in the environment.
func (s *PlanService) EnsureDefaultPlans(ctx context.Context) error {
	for _, def := range s.defaultPlans() {
		existing, err := s.repo.GetByCode(ctx, def.Code)
		if err != nil {
			return err
		}
		if existing == nil {
			plan := def
			if _, err := s.repo.Create(ctx, &plan); err != nil {
				return fmt.Errorf("create default plan %s: %w", def.Code, err)
			}
			continue
		}
		if existing.StripePriceID == "" && def.StripePriceID != "" {
			existing.StripePriceID = def.StripePriceID
			if _, err := s.repo.Update(ctx, existing); err != nil {
				return fmt.Errorf("backfill price id for %s: %w", def.Code, err)
			}
		}
	}
	return nil
}

func (s *PlanService) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *PlanService) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActiveByCode returns ErrPlanNotFound for unknown or inactive plans.
func (s *PlanService) GetActiveByCode(ctx context.Context, code string) (*models.Plan, error) {
	plan, err := s.repo.GetByCode(ctx, strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (s *PlanService) Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	input.Code = strings.ToLower(strings.TrimSpace(input.Code))
	if input.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.Currency == "" {
		input.Currency = s.cfg.PaymentCurrency
	}
	if input.PriceMinorUnits <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if input.Credits <= 0 {
		return nil, fmt.Errorf("%w: credits must be positive", ErrInvalidInput)
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	plan := models.Plan{
		Code:            input.Code,
		Title:           input.Title,
		Description:     input.Description,
		Currency:        strings.ToLower(input.Currency),
		PriceMinorUnits: input.PriceMinorUnits,
		Credits:         input.Credits,
		StripePriceID:   input.StripePriceID,
		Recurring:       input.Recurring,
		IsActive:        isActive,
	}
	return s.repo.Create(ctx, &plan)
}

func (s *PlanService) Update(ctx context.Context, id int64, input UpdatePlanInput) (*models.Plan, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrPlanNotFound
	}
	if input.Title != nil {
		existing.Title = *input.Title
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = strings.ToLower(*input.Currency)
	}
	if input.PriceMinorUnits != nil && *input.PriceMinorUnits > 0 {
		existing.PriceMinorUnits = *input.PriceMinorUnits
	}
	if input.Credits != nil && *input.Credits > 0 {
		existing.Credits = *input.Credits
	}
	if input.StripePriceID != nil {
		existing.StripePriceID = *input.StripePriceID
	}
	if input.Recurring != nil {
		existing.Recurring = *input.Recurring
	}
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	return s.repo.Update(ctx, existing)
}

func (s *PlanService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
