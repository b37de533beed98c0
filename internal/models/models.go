package models

import "time"

type CreditSource string

const (
	CreditSourceFree     CreditSource = "free"
	CreditSourcePurchase CreditSource = "purchase"
	CreditSourceUsed     CreditSource = "used"
	CreditSourceReferral CreditSource = "referral"
)

func (s CreditSource) Valid() bool {
	switch s {
	case CreditSourceFree, CreditSourcePurchase, CreditSourceUsed, CreditSourceReferral:
		return true
	}
	return false
}

type JobState string

const (
	JobStateSubmitted JobState = "submitted"
	JobStatePolling   JobState = "polling"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed_out"
)

type CheckoutStatus string

const (
	CheckoutPending CheckoutStatus = "pending"
	CheckoutPaid    CheckoutStatus = "paid"
	CheckoutExpired CheckoutStatus = "expired"
)

// User ids are the subject issued by the hosted auth provider.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreditEntry struct {
	ID        int64        `json:"id"`
	UserID    string       `json:"user_id"`
	Amount    int          `json:"amount"`
	Source    CreditSource `json:"source"`
	Reference string       `json:"reference,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type Video struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	DanceStyle   string    `json:"dance_style"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type GenerationLog struct {
	ID         int64
	UserID     string
	DanceStyle string
	TaskID     string
	State      JobState
	Error      string
	CreatedAt  time.Time
}

type Plan struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Currency        string    `json:"currency"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Credits         int       `json:"credits"`
	StripePriceID   string    `json:"stripe_price_id,omitempty"`
	Recurring       bool      `json:"recurring"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CheckoutSession struct {
	ID                int64
	UserID            string
	PlanID            int64
	ProviderSessionID string
	SubscriptionID    string
	Status            CheckoutStatus
	Credits           int
	RawPayload        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ReferralCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	MaxUses   int       `json:"max_uses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"created_at"`
}
