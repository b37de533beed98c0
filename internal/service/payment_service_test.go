package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/petdance/internal/config"
	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/payments"
)

type paymentFixture struct {
	ledger    *fakeLedger
	checkouts *fakeCheckouts
	provider  *fakeProvider
	plans     *fakePlans
	svc       *PaymentService
}

func paymentConfig() config.Config {
	return config.Config{
		PublicBaseURL:     "https://pets.example.com",
		StripeSecretKey:   "sk_test",
		StripeWebhookKey:  "whsec_test",
		StripeSuccessPath: "/account?checkout=success",
		StripeCancelPath:  "/account?checkout=cancel",
		PaymentCurrency:   "usd",
	}
}

func newPaymentFixture(cfg config.Config) *paymentFixture {
	ledger := &fakeLedger{}
	f := &paymentFixture{
		ledger:    ledger,
		checkouts: newFakeCheckouts(ledger),
		provider:  &fakeProvider{session: &payments.Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}},
		plans: &fakePlans{plans: []models.Plan{
			{ID: 1, Code: "starter", Title: "Starter", Currency: "usd", PriceMinorUnits: 499, Credits: 10, IsActive: true},
			{ID: 2, Code: "pro", Title: "Pro", Currency: "usd", PriceMinorUnits: 1999, Credits: 50, StripePriceID: "price_pro", Recurring: true, IsActive: true},
			{ID: 3, Code: "legacy", Title: "Legacy", Currency: "usd", PriceMinorUnits: 99, Credits: 1, IsActive: false},
		}},
	}
	f.svc = NewPaymentService(cfg, nil, f.provider, f.checkouts, NewPlanService(cfg, f.plans))
	return f
}

func (f *paymentFixture) balance(t *testing.T) int {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), testUserID)
	require.NoError(t, err)
	return b
}

func TestCreateCheckout(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	user := models.User{ID: testUserID, Email: "owner@example.com"}

	res, err := f.svc.CreateCheckout(context.Background(), user, "Pro")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Contains(t, res.URL, "checkout.stripe.com")

	assert.Equal(t, testUserID, f.provider.params.UserID)
	assert.Equal(t, int64(2), f.provider.params.PlanID)
	assert.Equal(t, 50, f.provider.params.Credits)
	assert.True(t, f.provider.params.Recurring)
	assert.Equal(t, "price_pro", f.provider.params.PriceID)
	assert.Equal(t, "https://pets.example.com/account?checkout=success", f.provider.params.SuccessURL)
	assert.NotEmpty(t, f.provider.params.IdempotencyKey)

	stored := f.checkouts.sessions["cs_1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.CheckoutPending, stored.Status)
	assert.Equal(t, 50, stored.Credits)
}

func TestCreateCheckout_Errors(t *testing.T) {
	user := models.User{ID: testUserID}

	f := newPaymentFixture(paymentConfig())
	_, err := f.svc.CreateCheckout(context.Background(), user, "legacy")
	require.ErrorIs(t, err, ErrPlanNotFound)
	_, err = f.svc.CreateCheckout(context.Background(), user, "enterprise")
	require.ErrorIs(t, err, ErrPlanNotFound)

	cfg := paymentConfig()
	cfg.StripeSecretKey = ""
	f = newPaymentFixture(cfg)
	_, err = f.svc.CreateCheckout(context.Background(), user, "starter")
	require.ErrorIs(t, err, ErrNotConfigured)

	f = newPaymentFixture(paymentConfig())
	f.provider.err = errors.New("stripe down")
	_, err = f.svc.CreateCheckout(context.Background(), user, "starter")
	require.Error(t, err)
	assert.Empty(t, f.checkouts.sessions)
}

func checkoutEvent(id, paymentStatus string) payments.Event {
	return payments.Event{
		ID:   id,
		Type: payments.EventCheckoutCompleted,
		Raw: []byte(`{"id": "cs_1", "mode": "payment", "payment_status": "` + paymentStatus + `",
			"metadata": {"user_id": "` + testUserID + `", "plan_id": "1", "credits": "10"}}`),
	}
}

func TestHandleWebhook_CheckoutCompletedCreditsOnce(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	_, err := f.svc.CreateCheckout(context.Background(), models.User{ID: testUserID}, "starter")
	require.NoError(t, err)

	f.provider.event = checkoutEvent("evt_1", "paid")
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 10, f.balance(t))
	assert.Equal(t, models.CheckoutPaid, f.checkouts.sessions["cs_1"].Status)

	// Provider retries deliver the same event id again.
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 10, f.balance(t))
	assert.Equal(t, 1, f.ledger.count())
}

func TestHandleWebhook_UnpaidCheckoutIsNotCredited(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	f.provider.event = checkoutEvent("evt_1", "unpaid")

	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Zero(t, f.balance(t))

	// The async success event carries a new id and credits the purchase.
	f.provider.event = checkoutEvent("evt_2", "paid")
	f.provider.event.Type = payments.EventCheckoutAsyncSucceeded
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 10, f.balance(t))
}

func TestHandleWebhook_MetadataFallsBackToStoredSession(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	_, err := f.svc.CreateCheckout(context.Background(), models.User{ID: testUserID}, "starter")
	require.NoError(t, err)

	f.provider.event = payments.Event{
		ID:   "evt_1",
		Type: payments.EventCheckoutCompleted,
		Raw:  []byte(`{"id": "cs_1", "payment_status": "paid", "metadata": {}}`),
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 10, f.balance(t))
}

func TestHandleWebhook_SubscriptionRenewal(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	_, err := f.svc.CreateCheckout(context.Background(), models.User{ID: testUserID}, "pro")
	require.NoError(t, err)

	f.provider.event = payments.Event{
		ID:   "evt_checkout",
		Type: payments.EventCheckoutCompleted,
		Raw: []byte(`{"id": "cs_1", "mode": "subscription", "payment_status": "paid", "subscription": "sub_1",
			"metadata": {"user_id": "` + testUserID + `", "credits": "50"}}`),
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 50, f.balance(t))

	f.provider.event = payments.Event{
		ID:   "evt_first_invoice",
		Type: payments.EventInvoicePaid,
		Raw:  []byte(`{"id": "in_0", "billing_reason": "subscription_create", "subscription": "sub_1"}`),
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 50, f.balance(t))

	f.provider.event = payments.Event{
		ID:   "evt_renewal",
		Type: payments.EventInvoicePaymentSuccess,
		Raw:  []byte(`{"id": "in_1", "billing_reason": "subscription_cycle", "parent": {"subscription_details": {"subscription": "sub_1"}}}`),
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Equal(t, 100, f.balance(t))

	f.provider.event = payments.Event{
		ID:   "evt_orphan",
		Type: payments.EventInvoicePaid,
		Raw:  []byte(`{"id": "in_2", "billing_reason": "subscription_cycle", "subscription": "sub_unknown"}`),
	}
	require.Error(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))
}

func TestHandleWebhook_Expired(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	_, err := f.svc.CreateCheckout(context.Background(), models.User{ID: testUserID}, "starter")
	require.NoError(t, err)

	f.provider.event = payments.Event{
		ID:   "evt_exp",
		Type: payments.EventCheckoutExpired,
		Raw:  []byte(`{"id": "cs_1", "status": "expired", "payment_status": "unpaid"}`),
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte(`{"raw": true}`), "valid"))
	assert.Equal(t, models.CheckoutExpired, f.checkouts.sessions["cs_1"].Status)
	assert.Zero(t, f.balance(t))
}

func TestHandleWebhook_Rejections(t *testing.T) {
	f := newPaymentFixture(paymentConfig())
	f.provider.event = checkoutEvent("evt_1", "paid")

	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "forged")
	require.True(t, IsInvalidSignature(err))
	assert.Zero(t, f.balance(t))

	f.provider.event = payments.Event{ID: "evt_2", Type: "customer.created", Raw: []byte(`{}`)}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid"))

	cfg := paymentConfig()
	cfg.StripeWebhookKey = ""
	f = newPaymentFixture(cfg)
	err = f.svc.HandleWebhook(context.Background(), []byte("{}"), "valid")
	require.ErrorIs(t, err, ErrNotConfigured)
}
