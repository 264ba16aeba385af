package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicing-backend/models"
)

func TestCreateInvoice_TotalsNumberAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tt := seedTaxType(t, f.db, f.business.Id, "10")

	inv, err := f.invoices.Create(ctx, f.db, f.business.Id, twoItemInput(f.client.Id, tt.Id))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !inv.Subtotal.Equal(dec("200")) || !inv.TaxAmount.Equal(dec("10")) || !inv.Total.Equal(dec("210")) {
		t.Errorf("unexpected totals: subtotal=%s tax=%s total=%s", inv.Subtotal, inv.TaxAmount, inv.Total)
	}
	if inv.InvoiceNumber != "INV-0001" {
		t.Errorf("expected INV-0001, got %s", inv.InvoiceNumber)
	}
	if inv.Status != models.StatusDraft {
		t.Errorf("expected draft, got %s", inv.Status)
	}
	if inv.ShareToken == "" {
		t.Error("expected a share token")
	}
	if want := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC); !inv.DueDate.Equal(want) {
		t.Errorf("expected due date %s, got %s", want, inv.DueDate)
	}
	if inv.PaymentMethod != models.PaymentMethodBoth {
		t.Errorf("expected payment method both, got %s", inv.PaymentMethod)
	}
	if len(inv.Items) != 2 || !inv.Items[1].TaxRate.Equal(dec("10")) || !inv.Items[1].LineTotal.Equal(dec("110")) {
		t.Errorf("unexpected items %+v", inv.Items)
	}

	second, err := f.invoices.Create(ctx, f.db, f.business.Id, twoItemInput(f.client.Id, tt.Id))
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if second.InvoiceNumber != "INV-0002" {
		t.Errorf("expected INV-0002, got %s", second.InvoiceNumber)
	}
	if second.ShareToken == inv.ShareToken {
		t.Error("share tokens must be unique")
	}
}

func TestCreateInvoice_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := seedBusiness(t, f.db, "owner-2")
	foreignClient := seedClient(t, f.db, other.Id, "x@example.com")
	foreignTax := seedTaxType(t, f.db, other.Id, "5")

	tests := []struct {
		name  string
		in    InvoiceInput
		field string
	}{
		{
			name:  "client of another business",
			in:    InvoiceInput{ClientId: strp(foreignClient.Id)},
			field: "client_id",
		},
		{
			name: "tax type of another business",
			in: InvoiceInput{Items: []ItemInput{
				{Description: "x", Quantity: dec("1"), Rate: dec("1"), TaxTypeId: strp(foreignTax.Id)},
			}},
			field: "items[0].tax_type_id",
		},
		{
			name:  "negative quantity",
			in:    InvoiceInput{Items: []ItemInput{{Description: "x", Quantity: dec("-1"), Rate: dec("1")}}},
			field: "items[0].quantity",
		},
		{
			name:  "due before issue",
			in:    InvoiceInput{IssueDate: "2024-03-10", DueDate: "2024-03-01"},
			field: "due_date",
		},
		{
			name:  "negative shipping",
			in:    InvoiceInput{Shipping: dec("-5")},
			field: "shipping",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.invoices.Create(ctx, f.db, f.business.Id, tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestCreateInvoice_DuplicateNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{InvoiceNumber: "A-1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{InvoiceNumber: "A-1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// the sequence skips numbers that were taken by hand
	if _, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{InvoiceNumber: "INV-0001"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	auto, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if auto.InvoiceNumber != "INV-0002" {
		t.Errorf("expected INV-0002, got %s", auto.InvoiceNumber)
	}
}

func TestGetInvoice_OtherBusinessIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := seedBusiness(t, f.db, "owner-2")
	inv := f.createSent(t)

	_, err := f.invoices.Get(ctx, f.db, other.Id, inv.Id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByShareToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createSent(t)

	got, err := f.invoices.GetByShareToken(ctx, f.db, inv.ShareToken)
	if err != nil {
		t.Fatalf("GetByShareToken failed: %v", err)
	}
	if got.Id != inv.Id || got.Business == nil || len(got.Items) != 2 {
		t.Errorf("unexpected public view %+v", got)
	}

	for _, token := range []string{"", "does-not-exist"} {
		if _, err := f.invoices.GetByShareToken(ctx, f.db, token); !errors.Is(err, ErrNotFound) {
			t.Errorf("token %q: expected ErrNotFound, got %v", token, err)
		}
	}
}

func TestUpdateInvoice_RecomputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createSent(t)

	updated, err := f.invoices.Update(ctx, f.db, f.business.Id, inv.Id, InvoiceInput{
		ClientId:  strp(f.client.Id),
		IssueDate: "2024-03-01",
		Items:     []ItemInput{{Description: "Retainer", Quantity: dec("3"), Rate: dec("33.335")}},
		Shipping:  dec("5"),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// 3 x 33.34 = 100.02 (rate rounded first), plus shipping
	if !updated.Total.Equal(dec("105.02")) {
		t.Errorf("expected total 105.02, got %s", updated.Total)
	}
	if len(updated.Items) != 1 {
		t.Errorf("expected items to be replaced, got %d", len(updated.Items))
	}
	if updated.InvoiceNumber != inv.InvoiceNumber || updated.ShareToken != inv.ShareToken {
		t.Error("number and share token must survive an update")
	}
	if updated.Status != models.StatusSent {
		t.Errorf("expected status sent, got %s", updated.Status)
	}
}

func TestCreateInvoice_QuantityAtColumnScale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{
		Items: []ItemInput{{Description: "Hours", Quantity: dec("1.005"), Rate: dec("1000")}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := f.invoices.Get(ctx, f.db, f.business.Id, inv.Id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	item := got.Items[0]
	if !item.Quantity.Equal(dec("1.01")) {
		t.Errorf("expected quantity 1.01, got %s", item.Quantity)
	}
	if want := item.Quantity.Mul(item.Rate); !item.LineTotal.Equal(want) || !got.Total.Equal(want) {
		t.Errorf("expected line and invoice total %s, got %s / %s", want, item.LineTotal, got.Total)
	}
}

func TestUpdateInvoice_TotalBelowPaidRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createSent(t)
	if _, _, err := f.payments.Record(ctx, f.db, f.business.Id, inv.Id, PaymentInput{Amount: dec("150")}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	_, err := f.invoices.Update(ctx, f.db, f.business.Id, inv.Id, InvoiceInput{
		Items: []ItemInput{{Description: "Small", Quantity: dec("1"), Rate: dec("100")}},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDeleteInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("removes items", func(t *testing.T) {
		inv := f.createSent(t)
		if err := f.invoices.Delete(ctx, f.db, f.business.Id, inv.Id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		var items int64
		f.db.Model(&models.InvoiceItem{}).Where("invoice_id = ?", inv.Id).Count(&items)
		if items != 0 {
			t.Errorf("expected items to be deleted, %d remain", items)
		}
		if _, err := f.invoices.Get(ctx, f.db, f.business.Id, inv.Id); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("refuses with completed payments", func(t *testing.T) {
		inv := f.createSent(t)
		if _, _, err := f.payments.Record(ctx, f.db, f.business.Id, inv.Id, PaymentInput{Amount: dec("10")}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		err := f.invoices.Delete(ctx, f.db, f.business.Id, inv.Id)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestDuplicateInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createSent(t)

	dup, err := f.invoices.Duplicate(ctx, f.db, f.business.Id, inv.Id)
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	if dup.Id == inv.Id || dup.InvoiceNumber == inv.InvoiceNumber || dup.ShareToken == inv.ShareToken {
		t.Error("duplicate must get its own identity")
	}
	if dup.Status != models.StatusDraft || !dup.AmountPaid.IsZero() {
		t.Errorf("expected an unpaid draft, got %s paid %s", dup.Status, dup.AmountPaid)
	}
	if !dup.Total.Equal(inv.Total) || len(dup.Items) != len(inv.Items) {
		t.Errorf("expected same lines and total")
	}
	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC); !dup.IssueDate.Equal(want) {
		t.Errorf("expected issue date today, got %s", dup.IssueDate)
	}
}

func TestListInvoices_DerivedStatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	current := f.createSent(t)
	late, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{
		ClientId:  strp(f.client.Id),
		IssueDate: "2024-01-01",
		DueDate:   "2024-01-31",
		Items:     []ItemInput{{Description: "Old work", Quantity: dec("1"), Rate: dec("40")}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.invoices.MarkSent(ctx, f.db, f.business.Id, late.Id); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	// past due but never delivered
	staleDraft, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{IssueDate: "2024-01-01", DueDate: "2024-01-31"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	overdue, total, err := f.invoices.List(ctx, f.db, f.business.Id, ListFilter{Status: models.StatusOverdue})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(overdue) != 1 || overdue[0].Id != late.Id || overdue[0].Status != models.StatusOverdue {
		t.Errorf("expected only the late invoice as overdue, got %d", total)
	}

	sent, total, err := f.invoices.List(ctx, f.db, f.business.Id, ListFilter{Status: models.StatusSent})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || sent[0].Id != current.Id {
		t.Errorf("expected only the current invoice as sent, got %d", total)
	}

	drafts, total, err := f.invoices.List(ctx, f.db, f.business.Id, ListFilter{Status: models.StatusDraft})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || drafts[0].Id != staleDraft.Id || drafts[0].Status != models.StatusDraft {
		t.Errorf("expected the past-due draft to stay a draft, got %d", total)
	}

	all, total, err := f.invoices.List(ctx, f.db, f.business.Id, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 || len(all) != 2 {
		t.Errorf("expected 3 total with a page of 2, got %d/%d", total, len(all))
	}
}

func TestCreateInvoice_RecurringAnchorsDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invoices.Create(ctx, f.db, f.business.Id, InvoiceInput{
		ClientId:  strp(f.client.Id),
		IssueDate: "2024-01-31",
		Recurring: &RecurringInput{Frequency: models.FrequencyMonthly},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !inv.IsRecurring || inv.RecurringEvery != 1 {
		t.Fatalf("expected a recurring template, got %+v", inv)
	}
	if want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC); inv.NextRecurringDate == nil || !inv.NextRecurringDate.Equal(want) {
		t.Errorf("expected first occurrence %s, got %v", want, inv.NextRecurringDate)
	}
	// the anchor comes from the issue date so March returns to the 31st
	if inv.RecurringDay == nil || *inv.RecurringDay != 31 {
		t.Errorf("unexpected anchor day %v", inv.RecurringDay)
	}
}
