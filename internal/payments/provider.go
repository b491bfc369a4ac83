// Package payments talks to the external payment provider through a narrow
// interface. The provider is an opaque collaborator; nothing beyond intent
// creation and webhook verification is modeled.
package payments

import (
	"context"
	"errors"
)

var (
	// ErrIntentFailed indicates the provider rejected the intent request.
	ErrIntentFailed = errors.New("payments.intent_failed")
	// ErrInvalidSignature indicates a webhook payload failed verification.
	ErrInvalidSignature = errors.New("payments.invalid_signature")
)

// Intent is the provider-side payment handle returned to the frontend.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
}

// Event is a verified webhook notification.
type Event struct {
	Type            string
	PaymentIntentID string
	OrderID         string
	UserID          string
}

// Webhook event types the checkout flow reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Provider creates payment intents with the external processor.
type Provider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
}
