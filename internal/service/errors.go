package service

import (
	"errors"
	"strings"
)

var (
	ErrCreditsRequired   = errors.New("insufficient credits, payment required")
	ErrUnknownStyle      = errors.New("unknown dance style")
	ErrNotConfigured     = errors.New("provider not configured")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrReferralInvalid   = errors.New("referral code invalid")
	ErrReferralRedeemed  = errors.New("referral code already redeemed")
	ErrReferralExhausted = errors.New("referral code exhausted")
)

// ConfigError names the environment variables a request needed but did not
// find, plus a hint the UI can show to whoever runs the deployment.
type ConfigError struct {
	Missing []string
	Hint    string
}

func (e *ConfigError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

func (e *ConfigError) Unwrap() error {
	return ErrNotConfigured
}

// VideoNotConfigured is returned whenever the video provider key is absent.
func VideoNotConfigured() *ConfigError {
	return &ConfigError{
		Missing: []string{"KIE_API_KEY"},
		Hint:    "Create an API key at https://kie.ai/api-key and set KIE_API_KEY in the server environment.",
	}
}

func storageNotConfigured() *ConfigError {
	return &ConfigError{
		Missing: []string{"S3_REGION", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_PUBLIC_BASE_URL"},
		Hint:    "Photo uploads need an S3-compatible bucket with public reads. Alternatively send image_url pointing at a public image.",
	}
}

func paymentsNotConfigured() *ConfigError {
	return &ConfigError{
		Missing: []string{"STRIPE_SECRET_KEY"},
		Hint:    "Set STRIPE_SECRET_KEY to a secret key from the Stripe dashboard (Developers > API keys).",
	}
}

func webhooksNotConfigured() *ConfigError {
	return &ConfigError{
		Missing: []string{"STRIPE_WEBHOOK_SECRET"},
		Hint:    "Add a webhook endpoint pointing at /api/webhooks/stripe and set STRIPE_WEBHOOK_SECRET to its signing secret.",
	}
}
