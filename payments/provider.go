// Package payments creates hosted payment links and verifies processor webhooks.
package payments

import (
	"context"
	"errors"
	"fmt"

	"invoicing-backend/config"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("payment processor is not configured")
)

type EventKind string

const (
	EventPaid    EventKind = "paid"
	EventFailed  EventKind = "failed"
	EventIgnored EventKind = "ignored"
)

type LinkRequest struct {
	InvoiceID     string
	InvoiceNumber string
	Description   string
	Currency      string
	Amount        decimal.Decimal
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type Link struct {
	URL string
	// Reference identifies the checkout at the processor and comes back on the webhook.
	Reference string
}

// Event is a verified, normalized webhook notification.
type Event struct {
	Kind      EventKind
	Type      string
	Reference string
	PaymentID string
	InvoiceID string
	Amount    decimal.Decimal
}

type Provider interface {
	Name() string
	SignatureHeader() string
	CreateLink(ctx context.Context, req LinkRequest) (*Link, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// New picks the configured processor.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.Payments.Provider {
	case "stripe":
		return NewStripe(cfg.Payments.Stripe.SecretKey, cfg.Payments.Stripe.WebhookSecret), nil
	case "razorpay":
		rc := cfg.Payments.Razorpay
		return NewRazorpay(rc.KeyID, rc.KeySecret, rc.WebhookSecret), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Payments.Provider)
	}
}

// Enabled reports whether the selected processor has credentials to talk to.
func Enabled(cfg *config.Config) bool {
	switch cfg.Payments.Provider {
	case "stripe":
		return cfg.Payments.Stripe.SecretKey != ""
	case "razorpay":
		return cfg.Payments.Razorpay.KeyID != "" && cfg.Payments.Razorpay.KeySecret != ""
	}
	return false
}

// minorUnits converts an amount to the processor's smallest currency unit.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
