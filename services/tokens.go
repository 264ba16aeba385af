package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"invoicing-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultInvoicePrefix    = "INV-"
	DefaultPaymentTermsDays = 30
	shareTokenBytes         = 24
	dateLayout              = "2006-01-02"
)

// NewShareToken returns an unguessable URL-safe token (192 bits).
func NewShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// nextInvoiceNumber reserves the next free number of a business. The business row is locked
// so concurrent creates cannot hand out the same sequence value.
func nextInvoiceNumber(db *gorm.DB, businessID string) (string, error) {
	var b models.Business
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, "id = ?", businessID).Error; err != nil {
		return "", notFound(err, "business")
	}
	prefix := b.InvoicePrefix
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}

	seq := b.InvoiceSequence
	for {
		seq++
		number := fmt.Sprintf("%s%04d", prefix, seq)
		taken, err := invoiceNumberTaken(db, businessID, number, "")
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		if err := db.Model(&models.Business{}).Where("id = ?", businessID).
			Update("invoice_sequence", seq).Error; err != nil {
			return "", err
		}
		return number, nil
	}
}

func invoiceNumberTaken(db *gorm.DB, businessID, number, exceptID string) (bool, error) {
	q := db.Model(&models.Invoice{}).Where("business_id = ? AND invoice_number = ?", businessID, number)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

func paymentTerms(b *models.Business) int {
	if b.PaymentTermsDays <= 0 {
		return DefaultPaymentTermsDays
	}
	return b.PaymentTermsDays
}

// defaultPaymentMethod offers whatever the business accepts.
func defaultPaymentMethod(b *models.Business) models.PaymentMethod {
	switch {
	case b.AcceptCard && !b.AcceptETransfer:
		return models.PaymentMethodStripe
	case b.AcceptETransfer && !b.AcceptCard:
		return models.PaymentMethodETransfer
	default:
		return models.PaymentMethodBoth
	}
}
