package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/digkill/petdance/internal/config"
	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/payments"
	"github.com/digkill/petdance/internal/repository"
)

type CheckoutProvider interface {
	CreateSession(ctx context.Context, params payments.SessionParams) (*payments.Session, error)
	ParseEvent(payload []byte, signature string) (payments.Event, error)
}

type checkoutStore interface {
	Create(ctx context.Context, session *models.CheckoutSession) error
	FindByProviderSession(ctx context.Context, providerSessionID string) (*models.CheckoutSession, error)
	FindBySubscription(ctx context.Context, subscriptionID string) (*models.CheckoutSession, error)
	RecordEvent(ctx context.Context, eventID, eventType string) (bool, error)
	UpdateStatus(ctx context.Context, providerSessionID string, status models.CheckoutStatus, payload string) error
	CreditFromEvent(ctx context.Context, credit repository.EventCredit) (bool, error)
}

type PaymentService struct {
	cfg       config.Config
	log       *slog.Logger
	provider  CheckoutProvider
	checkouts checkoutStore
	plans     *PlanService
}

type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

func NewPaymentService(cfg config.Config, log *slog.Logger, provider CheckoutProvider, checkouts checkoutStore, plans *PlanService) *PaymentService {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentService{
		cfg:       cfg,
		log:       log,
		provider:  provider,
		checkouts: checkouts,
		plans:     plans,
	}
}

// CreateCheckout opens a hosted checkout for planCode and records it as pending.
func (s *PaymentService) CreateCheckout(ctx context.Context, user models.User, planCode string) (*CheckoutResult, error) {
	if !s.cfg.PaymentsConfigured() || s.provider == nil {
		return nil, paymentsNotConfigured()
	}
	plan, err := s.plans.GetActiveByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}

	session, err := s.provider.CreateSession(ctx, payments.SessionParams{
		UserID:          user.ID,
		Email:           user.Email,
		PlanID:          plan.ID,
		PlanCode:        plan.Code,
		Title:           plan.Title,
		Credits:         plan.Credits,
		Currency:        plan.Currency,
		PriceMinorUnits: plan.PriceMinorUnits,
		PriceID:         plan.StripePriceID,
		Recurring:       plan.Recurring,
		SuccessURL:      s.absoluteURL(s.cfg.StripeSuccessPath),
		CancelURL:       s.absoluteURL(s.cfg.StripeCancelPath),
		IdempotencyKey:  uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	record := &models.CheckoutSession{
		UserID:            user.ID,
		PlanID:            plan.ID,
		ProviderSessionID: session.ID,
		Status:            models.CheckoutPending,
		Credits:           plan.Credits,
	}
	if err := s.checkouts.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record checkout session: %w", err)
	}

	return &CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

func (s *PaymentService) absoluteURL(path string) string {
	return s.cfg.PublicBaseURL + path
}

// HandleWebhook verifies and applies one provider event. Events that were
// already applied, or that carry nothing to credit, are acknowledged without
// touching the ledger.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.cfg.WebhooksConfigured() || s.provider == nil {
		return webhooksNotConfigured()
	}
	event, err := s.provider.ParseEvent(payload, signature)
	if err != nil {
		return err
	}
	log := s.log.With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case payments.EventCheckoutCompleted, payments.EventCheckoutAsyncSucceeded:
		return s.handleCheckoutPaid(ctx, log, event, string(payload))
	case payments.EventInvoicePaid, payments.EventInvoicePaymentSuccess:
		return s.handleInvoicePaid(ctx, log, event)
	case payments.EventCheckoutExpired:
		return s.handleCheckoutExpired(ctx, log, event, string(payload))
	default:
		log.Info("ignoring webhook event")
		return nil
	}
}

func (s *PaymentService) handleCheckoutPaid(ctx context.Context, log *slog.Logger, event payments.Event, payload string) error {
	checkout, err := event.Checkout()
	if err != nil {
		return err
	}
	if !checkout.Paid() {
		log.Info("checkout completed without payment yet", "session_id", checkout.ID, "payment_status", checkout.PaymentStatus)
		return nil
	}

	userID := checkout.Metadata["user_id"]
	credits, _ := strconv.Atoi(checkout.Metadata["credits"])
	if userID == "" || credits <= 0 {
		stored, err := s.checkouts.FindByProviderSession(ctx, checkout.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			log.Warn("checkout session has no usable metadata", "session_id", checkout.ID)
			return nil
		}
		userID, credits = stored.UserID, stored.Credits
	}

	applied, err := s.checkouts.CreditFromEvent(ctx, repository.EventCredit{
		EventID:           event.ID,
		EventType:         event.Type,
		UserID:            userID,
		Amount:            credits,
		Reference:         "checkout:" + checkout.ID,
		ProviderSessionID: checkout.ID,
		SubscriptionID:    checkout.Subscription,
		Payload:           payload,
	})
	if err != nil {
		return err
	}
	if !applied {
		log.Info("duplicate webhook event ignored")
		return nil
	}
	log.Info("credits purchased", "user_id", userID, "credits", credits, "session_id", checkout.ID)
	return nil
}

func (s *PaymentService) handleInvoicePaid(ctx context.Context, log *slog.Logger, event payments.Event) error {
	invoice, err := event.Invoice()
	if err != nil {
		return err
	}
	// The first invoice of a subscription is credited by checkout.session.completed.
	if invoice.BillingReason != "subscription_cycle" {
		log.Info("invoice not a renewal, skipping", "invoice_id", invoice.ID, "billing_reason", invoice.BillingReason)
		return nil
	}
	if invoice.Subscription == "" {
		log.Warn("renewal invoice without subscription", "invoice_id", invoice.ID)
		return nil
	}

	origin, err := s.checkouts.FindBySubscription(ctx, invoice.Subscription)
	if err != nil {
		return err
	}
	if origin == nil {
		// The checkout webhook that links the subscription may still be in flight.
		return fmt.Errorf("no checkout session for subscription %s", invoice.Subscription)
	}

	applied, err := s.checkouts.CreditFromEvent(ctx, repository.EventCredit{
		EventID:        event.ID,
		EventType:      event.Type,
		UserID:         origin.UserID,
		Amount:         origin.Credits,
		Reference:      "invoice:" + invoice.ID,
		SubscriptionID: invoice.Subscription,
	})
	if err != nil {
		return err
	}
	if !applied {
		log.Info("duplicate webhook event ignored")
		return nil
	}
	log.Info("subscription renewal credited", "user_id", origin.UserID, "credits", origin.Credits, "subscription_id", invoice.Subscription)
	return nil
}

func (s *PaymentService) handleCheckoutExpired(ctx context.Context, log *slog.Logger, event payments.Event, payload string) error {
	checkout, err := event.Checkout()
	if err != nil {
		return err
	}
	fresh, err := s.checkouts.RecordEvent(ctx, event.ID, event.Type)
	if err != nil {
		return err
	}
	if !fresh {
		log.Info("duplicate webhook event ignored")
		return nil
	}
	if err := s.checkouts.UpdateStatus(ctx, checkout.ID, models.CheckoutExpired, payload); err != nil {
		return err
	}
	log.Info("checkout session expired", "session_id", checkout.ID)
	return nil
}

// IsInvalidSignature reports whether a webhook was rejected for its signature.
func IsInvalidSignature(err error) bool {
	return errors.Is(err, payments.ErrInvalidSignature)
}
