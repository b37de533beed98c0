package service

import (
	"context"
	"errors"
	"sync"

	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/payments"
	"github.com/digkill/petdance/internal/repository"
	"github.com/digkill/petdance/internal/videogen"
)

const testUserID = "0b8a3f5e-6c1d-4e2f-8a9b-0c1d2e3f4a5b"

type fakeLedger struct {
	mu      sync.Mutex
	entries []models.CreditEntry
	failErr error
}

func (f *fakeLedger) Balance(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return 0, f.failErr
	}
	return f.balanceLocked(userID), nil
}

func (f *fakeLedger) balanceLocked(userID string) int {
	total := 0
	for _, e := range f.entries {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total
}

func (f *fakeLedger) Insert(_ context.Context, entry *models.CreditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) Spend(_ context.Context, userID string, cost int, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return false, f.failErr
	}
	if f.balanceLocked(userID) < cost {
		return false, nil
	}
	f.entries = append(f.entries, models.CreditEntry{
		ID:        int64(len(f.entries) + 1),
		UserID:    userID,
		Amount:    -cost,
		Source:    models.CreditSourceUsed,
		Reference: reference,
	})
	return true, nil
}

func (f *fakeLedger) ListByUser(_ context.Context, userID string, limit int) ([]models.CreditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fakeLedger) grant(userID string, amount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, models.CreditEntry{UserID: userID, Amount: amount, Source: models.CreditSourceFree})
}

type fakeGenerator struct {
	configured bool
	result     *videogen.Result
	err        error
	calls      int
	lastReq    videogen.Request
}

func (f *fakeGenerator) Configured() bool { return f.configured }

func (f *fakeGenerator) Generate(_ context.Context, req videogen.Request) (*videogen.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEnhancer struct {
	prompt string
	err    error
}

func (f *fakeEnhancer) Enhance(_ context.Context, _, _, _ string) (string, error) {
	return f.prompt, f.err
}

type fakeUploader struct {
	url   string
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, ownerID string, _ []byte, _ string) (string, error) {
	f.calls++
	return f.url, nil
}

type fakeVideos struct {
	saved []models.Video
	err   error
}

func (f *fakeVideos) Create(_ context.Context, video *models.Video) error {
	if f.err != nil {
		return f.err
	}
	video.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, *video)
	return nil
}

func (f *fakeVideos) ListByUser(_ context.Context, userID string, limit int) ([]models.Video, error) {
	var out []models.Video
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if f.saved[i].UserID == userID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

type fakeGenerationLog struct {
	entries []models.GenerationLog
}

func (f *fakeGenerationLog) Log(_ context.Context, entry models.GenerationLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakePlans struct {
	plans []models.Plan
}

func (f *fakePlans) List(_ context.Context, activeOnly bool) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range f.plans {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlans) GetByID(_ context.Context, id int64) (*models.Plan, error) {
	for _, p := range f.plans {
		if p.ID == id {
			plan := p
			return &plan, nil
		}
	}
	return nil, nil
}

func (f *fakePlans) GetByCode(_ context.Context, code string) (*models.Plan, error) {
	for _, p := range f.plans {
		if p.Code == code {
			plan := p
			return &plan, nil
		}
	}
	return nil, nil
}

func (f *fakePlans) Create(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	plan.ID = int64(len(f.plans) + 1)
	f.plans = append(f.plans, *plan)
	return plan, nil
}

func (f *fakePlans) Update(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	for i, p := range f.plans {
		if p.ID == plan.ID {
			f.plans[i] = *plan
			return plan, nil
		}
	}
	return nil, errors.New("no such plan")
}

func (f *fakePlans) Delete(_ context.Context, id int64) error {
	for i, p := range f.plans {
		if p.ID == id {
			f.plans = append(f.plans[:i], f.plans[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeCheckouts mirrors CheckoutRepository, crediting into a fakeLedger.
type fakeCheckouts struct {
	ledger   *fakeLedger
	sessions map[string]*models.CheckoutSession
	events   map[string]bool
}

func newFakeCheckouts(ledger *fakeLedger) *fakeCheckouts {
	return &fakeCheckouts{ledger: ledger, sessions: map[string]*models.CheckoutSession{}, events: map[string]bool{}}
}

func (f *fakeCheckouts) Create(_ context.Context, session *models.CheckoutSession) error {
	session.ID = int64(len(f.sessions) + 1)
	copied := *session
	f.sessions[session.ProviderSessionID] = &copied
	return nil
}

func (f *fakeCheckouts) FindByProviderSession(_ context.Context, id string) (*models.CheckoutSession, error) {
	if s, ok := f.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeCheckouts) FindBySubscription(_ context.Context, subscriptionID string) (*models.CheckoutSession, error) {
	for _, s := range f.sessions {
		if s.SubscriptionID == subscriptionID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCheckouts) RecordEvent(_ context.Context, eventID, _ string) (bool, error) {
	if f.events[eventID] {
		return false, nil
	}
	f.events[eventID] = true
	return true, nil
}

func (f *fakeCheckouts) UpdateStatus(_ context.Context, id string, status models.CheckoutStatus, payload string) error {
	if s, ok := f.sessions[id]; ok {
		s.Status = status
		s.RawPayload = payload
	}
	return nil
}

func (f *fakeCheckouts) CreditFromEvent(ctx context.Context, credit repository.EventCredit) (bool, error) {
	if f.events[credit.EventID] {
		return false, nil
	}
	f.events[credit.EventID] = true
	if err := f.ledger.Insert(ctx, &models.CreditEntry{
		UserID:    credit.UserID,
		Amount:    credit.Amount,
		Source:    models.CreditSourcePurchase,
		Reference: credit.Reference,
	}); err != nil {
		return false, err
	}
	if s, ok := f.sessions[credit.ProviderSessionID]; ok {
		s.Status = models.CheckoutPaid
		if credit.SubscriptionID != "" {
			s.SubscriptionID = credit.SubscriptionID
		}
	}
	return true, nil
}

type fakeProvider struct {
	session *payments.Session
	event   payments.Event
	err     error
	params  payments.SessionParams
}

func (f *fakeProvider) CreateSession(_ context.Context, params payments.SessionParams) (*payments.Session, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeProvider) ParseEvent(_ []byte, signature string) (payments.Event, error) {
	if signature != "valid" {
		return payments.Event{}, payments.ErrInvalidSignature
	}
	return f.event, nil
}

type fakeUsers struct {
	user         *models.User
	findErr      error
	appearAfter  int
	finds        int
	provisionErr error
	provisioned  []models.User
	updates      int
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.user == nil || f.finds <= f.appearAfter {
		return nil, nil
	}
	u := *f.user
	return &u, nil
}

func (f *fakeUsers) Provision(_ context.Context, user *models.User, _ int) (bool, error) {
	if f.provisionErr != nil {
		return false, f.provisionErr
	}
	f.provisioned = append(f.provisioned, *user)
	u := *user
	f.user = &u
	f.appearAfter = 0
	return true, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, _, email, name string) error {
	f.updates++
	f.user.Email = email
	f.user.DisplayName = name
	return nil
}
