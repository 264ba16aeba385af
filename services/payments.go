package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicing-backend/billing"
	"invoicing-backend/cache"
	"invoicing-backend/database"
	"invoicing-backend/metrics"
	"invoicing-backend/models"
	"invoicing-backend/payments"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"omitempty,max=32"`
	Notes     string          `json:"notes" validate:"max=1000"`
	PaidAt    string          `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Reference *string         `json:"reference" validate:"omitempty,max=255"`
}

type PaymentService struct {
	Provider payments.Provider
	Timeout  time.Duration
	Now      func() time.Time
	Log      zerolog.Logger
	Invoices *InvoiceService
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// lockInvoice re-reads the invoice under a row lock so concurrent payments serialize.
func lockInvoice(db *gorm.DB, businessID, id string) (*models.Invoice, error) {
	q := db.Clauses(clause.Locking{Strength: "UPDATE"})
	if businessID != "" {
		q = q.Scopes(database.ForBusiness(businessID))
	}
	var inv models.Invoice
	if err := q.First(&inv, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	return &inv, nil
}

func saveBalance(db *gorm.DB, inv *models.Invoice) error {
	return db.Model(&models.Invoice{}).Where("id = ?", inv.Id).Updates(map[string]any{
		"amount_paid": inv.AmountPaid,
		"status":      inv.Status,
		"paid_at":     inv.PaidAt,
	}).Error
}

func paymentError(err error) error {
	switch {
	case errors.Is(err, billing.ErrNonPositiveAmount), errors.Is(err, billing.ErrExceedsBalance):
		return invalid("amount", "%s", err.Error())
	default:
		return err
	}
}

// Record applies a manual payment. Amounts above the balance plus a cent are rejected and leave
// the invoice unchanged.
func (s *PaymentService) Record(ctx context.Context, db *gorm.DB, businessID, invoiceID string, in PaymentInput) (*models.Payment, *models.Invoice, error) {
	db = db.WithContext(ctx)
	inv, err := lockInvoice(db, businessID, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	paidAt := now
	if d, err := parseDate("paid_at", in.PaidAt); err != nil {
		return nil, nil, err
	} else if d != nil {
		paidAt = *d
	}

	amount := billing.Round2(in.Amount)
	if err := billing.ApplyPayment(inv, amount, now); err != nil {
		return nil, nil, paymentError(err)
	}
	if in.Reference != nil && strings.TrimSpace(*in.Reference) == "" {
		in.Reference = nil
	}

	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = "manual"
	}
	payment := models.Payment{
		InvoiceId:         inv.Id,
		Amount:            amount,
		Status:            models.PaymentCompleted,
		Method:            method,
		ExternalReference: in.Reference,
		Notes:             strings.TrimSpace(in.Notes),
		PaidAt:            paidAt,
	}
	if err := db.Create(&payment).Error; err != nil {
		return nil, nil, err
	}
	if err := saveBalance(db, inv); err != nil {
		return nil, nil, err
	}

	metrics.PaymentsRecorded.WithLabelValues("manual").Inc()
	cache.InvalidateBusiness(ctx, businessID)
	s.Log.Info().Str("invoice_id", inv.Id).Str("amount", amount.StringFixed(2)).Str("status", string(inv.Status)).Msg("payment recorded")
	return &payment, inv, nil
}

// Delete removes a payment; a completed one is reversed out of the invoice balance first.
func (s *PaymentService) Delete(ctx context.Context, db *gorm.DB, businessID, invoiceID, paymentID string) (*models.Invoice, error) {
	db = db.WithContext(ctx)
	inv, err := lockInvoice(db, businessID, invoiceID)
	if err != nil {
		return nil, err
	}
	var payment models.Payment
	if err := db.First(&payment, "id = ? AND invoice_id = ?", paymentID, inv.Id).Error; err != nil {
		return nil, notFound(err, "payment")
	}

	if payment.Status == models.PaymentCompleted {
		if err := billing.ReversePayment(inv, payment.Amount, s.now()); err != nil {
			return nil, err
		}
		if err := saveBalance(db, inv); err != nil {
			return nil, err
		}
	}
	if err := db.Delete(&payment).Error; err != nil {
		return nil, err
	}
	cache.InvalidateBusiness(ctx, businessID)
	return inv, nil
}

func (s *PaymentService) List(ctx context.Context, db *gorm.DB, businessID, invoiceID string) ([]models.Payment, error) {
	db = db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Invoice{}).Scopes(database.ForBusiness(businessID)).
		Where("id = ?", invoiceID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("invoice %w", ErrNotFound)
	}
	var out []models.Payment
	err := db.Where("invoice_id = ?", invoiceID).Order("paid_at DESC").Find(&out).Error
	return out, err
}

// CreateLink opens a hosted checkout for the open balance of a shared invoice and records it
// as a pending payment until the processor confirms.
func (s *PaymentService) CreateLink(ctx context.Context, db *gorm.DB, token string) (*payments.Link, error) {
	db = db.WithContext(ctx)
	inv, err := s.Invoices.GetByShareToken(ctx, db, token)
	if err != nil {
		return nil, err
	}
	b := inv.Business
	if !b.AcceptCard || !inv.PaymentMethod.AllowsCard() {
		return nil, conflict("card payments are not accepted for this invoice")
	}
	if inv.Status == models.StatusDraft {
		return nil, conflict("invoice is not open for payment")
	}
	balance := inv.Balance()
	if !balance.IsPositive() {
		return nil, conflict("invoice is already paid")
	}

	req := payments.LinkRequest{
		InvoiceID:     inv.Id,
		InvoiceNumber: inv.InvoiceNumber,
		Description:   fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, b.Name),
		Currency:      b.Currency,
		Amount:        balance,
		SuccessURL:    s.Invoices.PublicURL(token) + "?paid=1",
		CancelURL:     s.Invoices.PublicURL(token),
	}
	if inv.Client != nil {
		req.CustomerName = inv.Client.Name
		req.CustomerEmail = inv.Client.Email
	}

	linkCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		linkCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	link, err := s.Provider.CreateLink(linkCtx, req)
	if err != nil {
		s.Log.Error().Err(err).Str("invoice_id", inv.Id).Msg("payment link failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	ref := link.Reference
	pending := models.Payment{
		InvoiceId:         inv.Id,
		Amount:            balance,
		Status:            models.PaymentPending,
		Method:            s.Provider.Name(),
		ExternalReference: &ref,
		PaidAt:            s.now(),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		// only the newest checkout stays pending; a late webhook for an older one still applies
		if err := tx.Model(&models.Payment{}).
			Where("invoice_id = ? AND status = ?", inv.Id, models.PaymentPending).
			Updates(map[string]any{"status": models.PaymentFailed, "notes": supersededNote}).Error; err != nil {
			return err
		}
		return tx.Create(&pending).Error
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

const supersededNote = "checkout superseded by a newer payment link"

// HandleEvent applies a verified processor notification. Replays of an already completed
// reference are no-ops.
func (s *PaymentService) HandleEvent(ctx context.Context, db *gorm.DB, ev *payments.Event) error {
	if ev.Kind == payments.EventIgnored {
		return nil
	}
	if ev.InvoiceID == "" || ev.Reference == "" {
		return invalid("event", "missing invoice or reference")
	}
	db = db.WithContext(ctx)

	inv, err := lockInvoice(db, "", ev.InvoiceID)
	if err != nil {
		return err
	}

	var payment models.Payment
	err = db.Where("external_reference = ?", ev.Reference).First(&payment).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if exists && payment.InvoiceId != inv.Id {
		return conflict("reference %s belongs to another invoice", ev.Reference)
	}
	if exists && payment.Status == models.PaymentCompleted {
		return nil
	}

	log := s.Log.With().Str("invoice_id", inv.Id).Str("reference", ev.Reference).Str("event", ev.Type).Logger()
	if !exists {
		ref := ev.Reference
		payment = models.Payment{
			InvoiceId:         inv.Id,
			Amount:            ev.Amount,
			Status:            models.PaymentPending,
			Method:            s.Provider.Name(),
			ExternalReference: &ref,
		}
	}
	payment.PaidAt = s.now()
	if ev.PaymentID != "" {
		payment.Notes = "processor payment " + ev.PaymentID
	}

	switch ev.Kind {
	case payments.EventFailed:
		payment.Status = models.PaymentFailed
		log.Info().Msg("checkout failed or expired")
	case payments.EventPaid:
		amount := billing.Round2(ev.Amount)
		if !amount.IsPositive() {
			amount = payment.Amount
		}
		payment.Amount = amount
		if err := billing.ApplyPayment(inv, amount, s.now()); err != nil {
			// money arrived that the invoice cannot absorb; keep it visible for a refund
			payment.Status = models.PaymentFailed
			payment.Notes = strings.TrimSpace(payment.Notes + " rejected: " + err.Error())
			log.Error().Err(err).Str("amount", amount.StringFixed(2)).Msg("processor payment not applied")
		} else {
			payment.Status = models.PaymentCompleted
			if err := saveBalance(db, inv); err != nil {
				return err
			}
			metrics.PaymentsRecorded.WithLabelValues(s.Provider.Name()).Inc()
			log.Info().Str("amount", amount.StringFixed(2)).Str("status", string(inv.Status)).Msg("processor payment applied")
		}
	}

	if err := db.Save(&payment).Error; err != nil {
		return err
	}
	cache.InvalidateBusiness(ctx, inv.BusinessId)
	return nil
}
