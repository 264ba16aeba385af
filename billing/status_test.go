package billing_test

import (
	"errors"
	"testing"
	"time"

	"invoicing-backend/billing"
	"invoicing-backend/models"

	"github.com/shopspring/decimal"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func sentInvoice(total, paid string, due time.Time) *models.Invoice {
	return &models.Invoice{
		Status:     models.StatusSent,
		Total:      dec(total),
		AmountPaid: dec(paid),
		DueDate:    due,
	}
}

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name       string
		total      string
		paid       string
		amount     string
		wantErr    error
		wantStatus models.InvoiceStatus
		wantPaid   string
	}{
		{name: "full payment", total: "210", paid: "0", amount: "210", wantStatus: models.StatusPaid, wantPaid: "210"},
		{name: "partial payment", total: "210", paid: "0", amount: "100", wantStatus: models.StatusPartiallyPaid, wantPaid: "100"},
		{name: "completing payment", total: "210", paid: "100", amount: "110", wantStatus: models.StatusPaid, wantPaid: "210"},
		{name: "within tolerance", total: "210", paid: "100", amount: "110.01", wantStatus: models.StatusPaid, wantPaid: "210.01"},
		{name: "over tolerance", total: "210", paid: "100", amount: "110.02", wantErr: billing.ErrExceedsBalance},
		{name: "zero amount", total: "210", paid: "0", amount: "0", wantErr: billing.ErrNonPositiveAmount},
		{name: "negative amount", total: "210", paid: "0", amount: "-5", wantErr: billing.ErrNonPositiveAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := sentInvoice(tt.total, tt.paid, now.AddDate(0, 0, 10))
			err := billing.ApplyPayment(inv, dec(tt.amount), now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !inv.AmountPaid.Equal(dec(tt.paid)) || inv.Status != models.StatusSent {
					t.Errorf("rejected payment mutated invoice: paid=%s status=%s", inv.AmountPaid, inv.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyPayment failed: %v", err)
			}
			if inv.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, inv.Status)
			}
			if !inv.AmountPaid.Equal(dec(tt.wantPaid)) {
				t.Errorf("expected amount paid %s, got %s", tt.wantPaid, inv.AmountPaid)
			}
			if (inv.Status == models.StatusPaid) != (inv.PaidAt != nil) {
				t.Errorf("paid_at must be stamped exactly when paid; status=%s paid_at=%v", inv.Status, inv.PaidAt)
			}
		})
	}
}

func TestReversePayment(t *testing.T) {
	inv := sentInvoice("210", "0", now.AddDate(0, 0, 10))
	if err := billing.ApplyPayment(inv, dec("210"), now); err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}

	if err := billing.ReversePayment(inv, dec("110"), now); err != nil {
		t.Fatalf("ReversePayment failed: %v", err)
	}
	if inv.Status != models.StatusPartiallyPaid || inv.PaidAt != nil {
		t.Errorf("expected partially_paid without paid_at, got %s %v", inv.Status, inv.PaidAt)
	}

	if err := billing.ReversePayment(inv, dec("100"), now); err != nil {
		t.Fatalf("ReversePayment failed: %v", err)
	}
	if inv.Status != models.StatusSent {
		t.Errorf("expected sent, got %s", inv.Status)
	}

	if err := billing.ReversePayment(inv, dec("1"), now); !errors.Is(err, billing.ErrNothingToReverse) {
		t.Errorf("expected ErrNothingToReverse, got %v", err)
	}
}

func TestReversePayment_FallsBackToOverdue(t *testing.T) {
	inv := sentInvoice("100", "0", now.AddDate(0, 0, -3))
	if err := billing.ApplyPayment(inv, dec("100"), now); err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if err := billing.ReversePayment(inv, dec("40"), now); err != nil {
		t.Fatalf("ReversePayment failed: %v", err)
	}
	if inv.Status != models.StatusOverdue {
		t.Errorf("expected overdue, got %s", inv.Status)
	}
}

func TestRecomputeStatus(t *testing.T) {
	tests := []struct {
		name     string
		inv      *models.Invoice
		want     models.InvoiceStatus
		wantPaid bool
	}{
		{name: "draft stays draft", inv: &models.Invoice{Status: models.StatusDraft, Total: dec("100"), AmountPaid: decimal.Zero, DueDate: now}, want: models.StatusDraft},
		{name: "empty draft stays draft", inv: &models.Invoice{Status: models.StatusDraft, Total: decimal.Zero, AmountPaid: decimal.Zero, DueDate: now}, want: models.StatusDraft},
		{name: "sent with nothing owed is paid", inv: sentInvoice("0", "0", now), want: models.StatusPaid, wantPaid: true},
		{name: "sent with balance", inv: sentInvoice("100", "0", now.AddDate(0, 0, 1)), want: models.StatusSent},
		{name: "balance raised after payment", inv: &models.Invoice{Status: models.StatusPaid, Total: dec("120"), AmountPaid: dec("100"), DueDate: now.AddDate(0, 0, 1)}, want: models.StatusPartiallyPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing.RecomputeStatus(tt.inv, now)
			if tt.inv.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.inv.Status)
			}
			if (tt.inv.PaidAt != nil) != tt.wantPaid {
				t.Errorf("expected paid_at set=%v, got %v", tt.wantPaid, tt.inv.PaidAt)
			}
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	yesterday := now.AddDate(0, 0, -1)
	tests := []struct {
		name string
		inv  *models.Invoice
		want models.InvoiceStatus
	}{
		{name: "sent, not due", inv: sentInvoice("100", "0", now.AddDate(0, 0, 1)), want: models.StatusSent},
		{name: "sent, due today is not overdue", inv: sentInvoice("100", "0", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)), want: models.StatusSent},
		{name: "sent, past due", inv: sentInvoice("100", "0", yesterday), want: models.StatusOverdue},
		{name: "partially paid, past due", inv: &models.Invoice{Status: models.StatusPartiallyPaid, Total: dec("100"), AmountPaid: dec("40"), DueDate: yesterday}, want: models.StatusOverdue},
		{name: "paid, past due", inv: &models.Invoice{Status: models.StatusPaid, Total: dec("100"), AmountPaid: dec("100"), DueDate: yesterday}, want: models.StatusPaid},
		{name: "draft, past due", inv: &models.Invoice{Status: models.StatusDraft, Total: dec("100"), AmountPaid: decimal.Zero, DueDate: yesterday}, want: models.StatusDraft},
		{name: "stale overdue after due date moved", inv: &models.Invoice{Status: models.StatusOverdue, Total: dec("100"), AmountPaid: decimal.Zero, DueDate: now.AddDate(0, 0, 5)}, want: models.StatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := billing.DeriveStatus(tt.inv, now); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
