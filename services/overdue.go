package services

import (
	"context"
	"time"

	"invoicing-backend/billing"
	"invoicing-backend/metrics"
	"invoicing-backend/models"

	"gorm.io/gorm"
)

type SweepResult struct {
	MarkedOverdue int64 `json:"marked_overdue"`
	Restored      int64 `json:"restored"`
}

// SweepOverdue persists the derived overdue status: open invoices past their due date become
// overdue, and overdue invoices whose due date moved forward go back to sent or partially paid.
func SweepOverdue(ctx context.Context, db *gorm.DB, now time.Time) (*SweepResult, error) {
	today := billing.DateOf(now)
	db = db.WithContext(ctx)
	res := &SweepResult{}

	marked := db.Model(&models.Invoice{}).
		Where("status IN ?", []models.InvoiceStatus{models.StatusSent, models.StatusPartiallyPaid}).
		Where("due_date < ? AND amount_paid < total", today).
		Update("status", models.StatusOverdue)
	if marked.Error != nil {
		return nil, marked.Error
	}
	res.MarkedOverdue = marked.RowsAffected

	stale := "status = ? AND NOT (due_date < ? AND amount_paid < total)"
	partial := db.Model(&models.Invoice{}).
		Where(stale, models.StatusOverdue, today).Where("amount_paid > 0").
		Update("status", models.StatusPartiallyPaid)
	if partial.Error != nil {
		return nil, partial.Error
	}
	sent := db.Model(&models.Invoice{}).
		Where(stale, models.StatusOverdue, today).Where("amount_paid = 0").
		Update("status", models.StatusSent)
	if sent.Error != nil {
		return nil, sent.Error
	}
	res.Restored = partial.RowsAffected + sent.RowsAffected

	metrics.InvoicesMarkedOverdue.Add(float64(res.MarkedOverdue))
	return res, nil
}
