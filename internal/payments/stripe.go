package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired        = "checkout.session.expired"
	EventInvoicePaid            = "invoice.paid"
	EventInvoicePaymentSuccess  = "invoice.payment_succeeded"
)

// SessionParams describes one hosted checkout for a plan purchase.
type SessionParams struct {
	UserID          string
	Email           string
	PlanID          int64
	PlanCode        string
	Title           string
	Credits         int
	Currency        string
	PriceMinorUnits int
	PriceID         string
	Recurring       bool
	SuccessURL      string
	CancelURL       string
	IdempotencyKey  string
}

// Metadata is attached to both the session and, for subscriptions, the
// subscription so renewal invoices can be traced back to the buyer.
func (p SessionParams) Metadata() map[string]string {
	return map[string]string{
		"user_id":   p.UserID,
		"plan_id":   strconv.FormatInt(p.PlanID, 10),
		"plan_code": p.PlanCode,
		"credits":   strconv.Itoa(p.Credits),
	}
}

type Session struct {
	ID  string
	URL string
}

type sessionsAPI interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

type StripeProvider struct {
	sessions      sessionsAPI
	webhookSecret string
	log           *slog.Logger
}

func NewStripeProvider(secretKey, webhookSecret string, log *slog.Logger) *StripeProvider {
	if log == nil {
		log = slog.Default()
	}
	client := stripe.NewClient(secretKey)
	return &StripeProvider{
		sessions:      client.V1CheckoutSessions,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (p *StripeProvider) CreateSession(ctx context.Context, in SessionParams) (*Session, error) {
	metadata := in.Metadata()

	mode := stripe.CheckoutSessionModePayment
	if in.Recurring {
		mode = stripe.CheckoutSessionModeSubscription
	}

	item := &stripe.CheckoutSessionCreateLineItemParams{Quantity: stripe.Int64(1)}
	if in.PriceID != "" {
		item.Price = stripe.String(in.PriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionCreateLineItemPriceDataParams{
			Currency: stripe.String(in.Currency),
			ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
				Name: stripe.String(in.Title),
			},
			UnitAmount: stripe.Int64(int64(in.PriceMinorUnits)),
		}
		if in.Recurring {
			item.PriceData.Recurring = &stripe.CheckoutSessionCreateLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			}
		}
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(mode)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
		Metadata:          metadata,
		LineItems:         []*stripe.CheckoutSessionCreateLineItemParams{item},
	}
	if in.Recurring {
		params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{Metadata: metadata}
	} else {
		params.PaymentIntentData = &stripe.CheckoutSessionCreatePaymentIntentDataParams{Metadata: metadata}
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	session, err := p.sessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	p.log.Info("checkout session created", "session_id", session.ID, "plan", in.PlanCode, "mode", mode)
	return &Session{ID: session.ID, URL: session.URL}, nil
}

// ParseEvent verifies the Stripe-Signature header and returns the event.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}
	return Event{ID: event.ID, Type: string(event.Type), Raw: raw}, nil
}
