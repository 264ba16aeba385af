package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"invoicing-backend/billing"
	"invoicing-backend/cache"
	"invoicing-backend/database"
	"invoicing-backend/mailer"
	"invoicing-backend/metrics"
	"invoicing-backend/models"
	"invoicing-backend/pdf"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeliveryResult reports an email attempt. A failed attempt leaves the invoice untouched and
// carries the reason in EmailError.
type DeliveryResult struct {
	Invoice    *models.Invoice `json:"invoice"`
	Recipient  string          `json:"recipient"`
	Delivered  bool            `json:"delivered"`
	EmailError string          `json:"email_error,omitempty"`
}

// Deliver emails the invoice PDF and public link to the client. A draft becomes sent only after
// the email was accepted. With resend set, drafts are rejected.
func (s *InvoiceService) Deliver(ctx context.Context, db *gorm.DB, businessID, id string, resend bool) (*DeliveryResult, error) {
	db = db.WithContext(ctx)
	var inv models.Invoice
	err := db.Scopes(database.ForBusiness(businessID)).
		Preload("Items", withItems).
		Preload("Client").
		Preload("Business").
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	if resend && inv.Status == models.StatusDraft {
		return nil, conflict("invoice has not been sent yet")
	}
	if inv.Client == nil || strings.TrimSpace(inv.Client.Email) == "" {
		return nil, invalid("client_id", "the invoice client has no email address")
	}

	now := s.now()
	view := inv
	view.Status = billing.DeriveStatus(&inv, now)
	attachment, err := pdf.RenderInvoice(&view)
	if err != nil {
		return nil, err
	}

	recipient := strings.TrimSpace(inv.Client.Email)
	msg := mailer.Message{
		To:      recipient,
		ReplyTo: inv.Business.Email,
		Subject: fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, inv.Business.Name),
		Body:    s.emailBody(&view),
		Attachments: []mailer.Attachment{
			{Filename: fmt.Sprintf("invoice-%s.pdf", inv.InvoiceNumber), Data: attachment},
		},
	}

	sendCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	result := &DeliveryResult{Recipient: recipient}
	if err := s.Mailer.Send(sendCtx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		s.Log.Warn().Err(err).Str("invoice_id", inv.Id).Msg("invoice email failed")
		result.EmailError = err.Error()
		result.Invoice, err = s.Get(ctx, db, businessID, inv.Id)
		return result, err
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()

	kind := "resent"
	if inv.Status == models.StatusDraft {
		kind = "sent"
		inv.Status = models.StatusSent
		billing.RecomputeStatus(&inv, now)
	}
	inv.SentAt = &now
	if err := db.Model(&models.Invoice{}).Where("id = ?", inv.Id).Updates(map[string]any{
		"status":  inv.Status,
		"sent_at": inv.SentAt,
		"paid_at": inv.PaidAt,
	}).Error; err != nil {
		return nil, err
	}
	if err := recordVersion(db, &inv, kind, recipient); err != nil {
		return nil, err
	}

	cache.InvalidateBusiness(ctx, businessID)
	s.Log.Info().Str("invoice_id", inv.Id).Str("kind", kind).Msg("invoice emailed")
	result.Delivered = true
	result.Invoice, err = s.Get(ctx, db, businessID, inv.Id)
	return result, err
}

// MarkSent moves a draft to sent without emailing it, for invoices delivered by other means.
func (s *InvoiceService) MarkSent(ctx context.Context, db *gorm.DB, businessID, id string) (*models.Invoice, error) {
	db = db.WithContext(ctx)
	var inv models.Invoice
	if err := db.Scopes(database.ForBusiness(businessID)).First(&inv, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	if inv.Status != models.StatusDraft {
		return nil, conflict("invoice was already sent")
	}
	now := s.now()
	inv.Status = models.StatusSent
	billing.RecomputeStatus(&inv, now)
	if err := db.Model(&models.Invoice{}).Where("id = ?", inv.Id).Updates(map[string]any{
		"status":  inv.Status,
		"sent_at": now,
		"paid_at": inv.PaidAt,
	}).Error; err != nil {
		return nil, err
	}
	cache.InvalidateBusiness(ctx, businessID)
	return s.Get(ctx, db, businessID, inv.Id)
}

// Versions lists what was delivered for an invoice, newest first.
func (s *InvoiceService) Versions(ctx context.Context, db *gorm.DB, businessID, id string) ([]models.InvoiceVersion, error) {
	db = db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Invoice{}).Scopes(database.ForBusiness(businessID)).
		Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("invoice %w", ErrNotFound)
	}
	var out []models.InvoiceVersion
	err := db.Where("invoice_id = ?", id).Order("version_no DESC").Find(&out).Error
	return out, err
}

func recordVersion(db *gorm.DB, inv *models.Invoice, kind, recipient string) error {
	snap := *inv
	snap.Business = nil
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	var last int
	if err := db.Model(&models.InvoiceVersion{}).Where("invoice_id = ?", inv.Id).
		Select("COALESCE(MAX(version_no), 0)").Scan(&last).Error; err != nil {
		return err
	}
	return db.Create(&models.InvoiceVersion{
		InvoiceId: inv.Id,
		VersionNo: last + 1,
		Kind:      kind,
		Recipient: recipient,
		Snapshot:  datatypes.JSON(blob),
	}).Error
}

func (s *InvoiceService) emailBody(inv *models.Invoice) string {
	b := inv.Business
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", inv.Client.Name)
	fmt.Fprintf(&sb, "%s has sent you invoice %s for %s %s.\n", b.Name, inv.InvoiceNumber, b.Currency, inv.Total.StringFixed(2))
	fmt.Fprintf(&sb, "Amount due: %s %s, due on %s.\n\n", b.Currency, inv.Balance().StringFixed(2), inv.DueDate.Format("January 2, 2006"))
	fmt.Fprintf(&sb, "View the invoice online: %s\n", s.PublicURL(inv.ShareToken))
	if inv.PaymentMethod.AllowsETransfer() && b.AcceptETransfer && b.PaymentInstructions != "" {
		fmt.Fprintf(&sb, "\nPayment instructions:\n%s\n", b.PaymentInstructions)
	}
	fmt.Fprintf(&sb, "\nThank you,\n%s\n", b.Name)
	return sb.String()
}
