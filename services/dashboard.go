package services

import (
	"context"
	"encoding/json"
	"time"

	"invoicing-backend/billing"
	"invoicing-backend/cache"
	"invoicing-backend/database"
	"invoicing-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DashboardStats struct {
	Currency       string                       `json:"currency"`
	Outstanding    decimal.Decimal              `json:"outstanding"`
	OverdueAmount  decimal.Decimal              `json:"overdue_amount"`
	OverdueCount   int                          `json:"overdue_count"`
	PaidThisMonth  decimal.Decimal              `json:"paid_this_month"`
	StatusCounts   map[models.InvoiceStatus]int `json:"status_counts"`
	ClientCount    int64                        `json:"client_count"`
	RecurringCount int                          `json:"recurring_count"`
	GeneratedAt    time.Time                    `json:"generated_at"`
}

// Dashboard aggregates a business's receivables. Results are cached per business and dropped
// on every mutation.
func Dashboard(ctx context.Context, db *gorm.DB, business *models.Business, now time.Time) (*DashboardStats, error) {
	key := cache.DashboardKey(business.Id)
	if data, ok := cache.GetCached(ctx, key); ok {
		var stats DashboardStats
		if err := json.Unmarshal(data, &stats); err == nil {
			return &stats, nil
		}
	}

	db = db.WithContext(ctx)
	var invoices []models.Invoice
	if err := db.Scopes(database.ForBusiness(business.Id)).
		Select("id", "status", "due_date", "total", "amount_paid", "is_recurring").
		Find(&invoices).Error; err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		Currency:      business.Currency,
		Outstanding:   decimal.Zero,
		OverdueAmount: decimal.Zero,
		PaidThisMonth: decimal.Zero,
		StatusCounts:  map[models.InvoiceStatus]int{},
		GeneratedAt:   now.UTC(),
	}
	for i := range invoices {
		inv := &invoices[i]
		status := billing.DeriveStatus(inv, now)
		stats.StatusCounts[status]++
		if inv.IsRecurring {
			stats.RecurringCount++
		}
		switch status {
		case models.StatusSent, models.StatusPartiallyPaid:
			stats.Outstanding = stats.Outstanding.Add(inv.Balance())
		case models.StatusOverdue:
			stats.Outstanding = stats.Outstanding.Add(inv.Balance())
			stats.OverdueAmount = stats.OverdueAmount.Add(inv.Balance())
			stats.OverdueCount++
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var paid []models.Payment
	if err := db.Model(&models.Payment{}).
		Joins("JOIN invoices ON invoices.id = payments.invoice_id").
		Where("invoices.business_id = ? AND payments.status = ? AND payments.paid_at >= ?",
			business.Id, models.PaymentCompleted, monthStart).
		Select("payments.amount").
		Find(&paid).Error; err != nil {
		return nil, err
	}
	for _, p := range paid {
		stats.PaidThisMonth = stats.PaidThisMonth.Add(p.Amount)
	}

	if err := db.Model(&models.Client{}).Scopes(database.ForBusiness(business.Id)).
		Count(&stats.ClientCount).Error; err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		cache.SetCached(ctx, key, data, cache.DashboardTTL)
	}
	return stats, nil
}
