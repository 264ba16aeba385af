package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

type Razorpay struct {
	client        *razorpay.Client
	webhookSecret string
	configured    bool
}

func NewRazorpay(keyID, keySecret, webhookSecret string) *Razorpay {
	return &Razorpay{
		client:        razorpay.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
		configured:    keyID != "" && keySecret != "",
	}
}

func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) SignatureHeader() string { return "X-Razorpay-Signature" }

func (r *Razorpay) CreateLink(_ context.Context, req LinkRequest) (*Link, error) {
	if !r.configured {
		return nil, ErrNotConfigured
	}
	data := map[string]interface{}{
		"amount":          minorUnits(req.Amount),
		"currency":        strings.ToUpper(req.Currency),
		"description":     req.Description,
		"reference_id":    req.InvoiceID,
		"callback_url":    req.SuccessURL,
		"callback_method": "get",
		"notes": map[string]interface{}{
			"invoice_id":     req.InvoiceID,
			"invoice_number": req.InvoiceNumber,
		},
	}
	if req.CustomerEmail != "" {
		data["customer"] = map[string]interface{}{
			"name":  req.CustomerName,
			"email": req.CustomerEmail,
		}
	}

	resp, err := r.client.PaymentLink.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment link: %w", err)
	}
	id, _ := resp["id"].(string)
	url, _ := resp["short_url"].(string)
	if id == "" || url == "" {
		return nil, fmt.Errorf("razorpay payment link: unexpected response")
	}
	return &Link{URL: url, Reference: id}, nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID          string `json:"id"`
				ReferenceID string `json:"reference_id"`
				AmountPaid  int64  `json:"amount_paid"`
				Notes       struct {
					InvoiceID string `json:"invoice_id"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"payment_link"`
		Payment struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body.
func (r *Razorpay) VerifySignature(payload []byte, signature string) bool {
	if r.webhookSecret == "" || signature == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(r.webhookSecret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (r *Razorpay) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if !r.VerifySignature(payload, signature) {
		return nil, ErrInvalidSignature
	}
	var wh razorpayWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("decode razorpay webhook: %w", err)
	}

	link := wh.Payload.PaymentLink.Entity
	out := &Event{
		Kind:      EventIgnored,
		Type:      wh.Event,
		Reference: link.ID,
		PaymentID: wh.Payload.Payment.Entity.ID,
		InvoiceID: link.Notes.InvoiceID,
	}
	if out.InvoiceID == "" {
		out.InvoiceID = link.ReferenceID
	}

	switch wh.Event {
	case "payment_link.paid":
		out.Kind = EventPaid
		amount := wh.Payload.Payment.Entity.Amount
		if amount == 0 {
			amount = link.AmountPaid
		}
		out.Amount = fromMinorUnits(amount)
	case "payment_link.expired", "payment_link.cancelled":
		out.Kind = EventFailed
	}
	return out, nil
}
