package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event is a verified webhook event with its data object left undecoded.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

type CheckoutObject struct {
	ID            string
	Mode          string
	Status        string
	PaymentStatus string
	Subscription  string
	Metadata      map[string]string
}

// Paid reports whether the buyer has actually been charged.
func (c CheckoutObject) Paid() bool {
	return c.PaymentStatus == "paid" || c.PaymentStatus == "no_payment_required"
}

type InvoiceObject struct {
	ID            string
	BillingReason string
	Subscription  string
	Metadata      map[string]string
}

func (e Event) Checkout() (*CheckoutObject, error) {
	var obj struct {
		ID            string            `json:"id"`
		Mode          string            `json:"mode"`
		Status        string            `json:"status"`
		PaymentStatus string            `json:"payment_status"`
		Subscription  json.RawMessage   `json:"subscription"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(e.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("checkout session without id")
	}
	return &CheckoutObject{
		ID:            obj.ID,
		Mode:          obj.Mode,
		Status:        obj.Status,
		PaymentStatus: obj.PaymentStatus,
		Subscription:  expandableID(obj.Subscription),
		Metadata:      obj.Metadata,
	}, nil
}

// Invoice decodes both the current invoice shape, where the subscription
// lives under parent.subscription_details, and the older top-level field.
func (e Event) Invoice() (*InvoiceObject, error) {
	var obj struct {
		ID            string          `json:"id"`
		BillingReason string          `json:"billing_reason"`
		Subscription  json.RawMessage `json:"subscription"`
		Parent        struct {
			SubscriptionDetails struct {
				Subscription json.RawMessage   `json:"subscription"`
				Metadata     map[string]string `json:"metadata"`
			} `json:"subscription_details"`
		} `json:"parent"`
	}
	if err := json.Unmarshal(e.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("invoice without id")
	}
	sub := expandableID(obj.Parent.SubscriptionDetails.Subscription)
	if sub == "" {
		sub = expandableID(obj.Subscription)
	}
	return &InvoiceObject{
		ID:            obj.ID,
		BillingReason: obj.BillingReason,
		Subscription:  sub,
		Metadata:      obj.Parent.SubscriptionDetails.Metadata,
	}, nil
}

// expandableID reads a field that is either an id string or an expanded
// object carrying an id.
func expandableID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			return id
		}
		return ""
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
