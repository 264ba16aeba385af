package billing

import (
	"errors"
	"time"

	"invoicing-backend/models"

	"github.com/shopspring/decimal"
)

// PaymentTolerance is how far a payment may exceed the open balance (rounding slack).
var PaymentTolerance = decimal.New(1, -2)

var (
	ErrNonPositiveAmount = errors.New("payment amount must be greater than zero")
	ErrExceedsBalance    = errors.New("payment amount exceeds remaining balance")
	ErrNothingToReverse  = errors.New("payment amount exceeds amount paid")
)

// ValidatePayment checks a prospective payment against the invoice balance without mutating it.
func ValidatePayment(inv *models.Invoice, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if amount.GreaterThan(inv.Balance().Add(PaymentTolerance)) {
		return ErrExceedsBalance
	}
	return nil
}

// ApplyPayment adds a completed payment to the invoice and recomputes its status.
// The invoice is left untouched when validation fails.
func ApplyPayment(inv *models.Invoice, amount decimal.Decimal, now time.Time) error {
	if err := ValidatePayment(inv, amount); err != nil {
		return err
	}
	inv.AmountPaid = Round2(inv.AmountPaid.Add(amount))
	switch {
	case inv.AmountPaid.GreaterThanOrEqual(inv.Total):
		inv.Status = models.StatusPaid
		paidAt := now.UTC()
		inv.PaidAt = &paidAt
	case inv.AmountPaid.IsPositive():
		inv.Status = models.StatusPartiallyPaid
	}
	return nil
}

// ReversePayment removes a previously applied completed payment (correction or deletion).
func ReversePayment(inv *models.Invoice, amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if amount.GreaterThan(inv.AmountPaid) {
		return ErrNothingToReverse
	}
	inv.AmountPaid = Round2(inv.AmountPaid.Sub(amount))
	RecomputeStatus(inv, now)
	return nil
}

// RecomputeStatus re-derives the stored status after the total or the amount paid changed.
// Drafts stay drafts until they are delivered. A delivered invoice with nothing left to pay,
// a zero total included, is paid.
func RecomputeStatus(inv *models.Invoice, now time.Time) {
	if inv.Status == models.StatusDraft && !inv.AmountPaid.IsPositive() {
		return
	}
	switch {
	case inv.AmountPaid.GreaterThanOrEqual(inv.Total):
		inv.Status = models.StatusPaid
		if inv.PaidAt == nil {
			paidAt := now.UTC()
			inv.PaidAt = &paidAt
		}
		return
	case inv.AmountPaid.IsPositive():
		inv.Status = models.StatusPartiallyPaid
	default:
		inv.Status = models.StatusSent
	}
	inv.PaidAt = nil
	if IsOverdue(inv, now) {
		inv.Status = models.StatusOverdue
	}
}

// IsOverdue: delivered, not fully paid, and the due date lies strictly before today.
// Drafts never become overdue; nothing has been billed until they are sent.
func IsOverdue(inv *models.Invoice, now time.Time) bool {
	switch inv.Status {
	case models.StatusSent, models.StatusPartiallyPaid, models.StatusOverdue:
	default:
		return false
	}
	if inv.AmountPaid.GreaterThanOrEqual(inv.Total) {
		return false
	}
	return DateOf(inv.DueDate).Before(DateOf(now))
}

// DeriveStatus is the status to report at read time.
func DeriveStatus(inv *models.Invoice, now time.Time) models.InvoiceStatus {
	if IsOverdue(inv, now) {
		return models.StatusOverdue
	}
	if inv.Status == models.StatusOverdue {
		// stored by an earlier sweep, but the due date was moved or the balance cleared
		if inv.AmountPaid.IsPositive() {
			return models.StatusPartiallyPaid
		}
		return models.StatusSent
	}
	return inv.Status
}
