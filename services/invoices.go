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
	"invoicing-backend/mailer"
	"invoicing-backend/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	TaxTypeId   *string         `json:"tax_type_id" validate:"omitempty,uuid"`
}

type RecurringInput struct {
	Frequency models.RecurringFrequency `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Every     int                       `json:"every" validate:"omitempty,min=1,max=365"`
	Day       *int                      `json:"day" validate:"omitempty,min=1,max=31"`
	Month     *int                      `json:"month" validate:"omitempty,min=1,max=12"`
	// StartDate is the first generation date; defaults to one interval after the issue date.
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

// InvoiceInput is the full editable state of an invoice. Updates replace every field.
type InvoiceInput struct {
	ClientId      *string              `json:"client_id" validate:"omitempty,uuid"`
	InvoiceNumber string               `json:"invoice_number" validate:"omitempty,max=64"`
	IssueDate     string               `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       string               `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Items         []ItemInput          `json:"items" validate:"max=200,dive"`
	Shipping      decimal.Decimal      `json:"shipping"`
	Notes         string               `json:"notes" validate:"max=5000"`
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=stripe etransfer both"`
	Recurring     *RecurringInput      `json:"recurring"`
}

type ListFilter struct {
	Status   models.InvoiceStatus
	ClientId string
	Limit    int
	Offset   int
}

// InvoiceService owns the invoice lifecycle. Every method takes the *gorm.DB to run on so
// HTTP handlers can pass their request transaction.
type InvoiceService struct {
	Mailer        mailer.Sender
	PublicBaseURL string
	Timeout       time.Duration
	Now           func() time.Time
	Log           zerolog.Logger
}

func (s *InvoiceService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// PublicURL is the client-facing page of a shared invoice.
func (s *InvoiceService) PublicURL(token string) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + "/invoice/" + token
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Get loads one invoice of a business with items, client and payments.
func (s *InvoiceService) Get(ctx context.Context, db *gorm.DB, businessID, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.WithContext(ctx).Scopes(database.ForBusiness(businessID)).
		Preload("Items", withItems).
		Preload("Client").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at ASC") }).
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	inv.Status = billing.DeriveStatus(&inv, s.now())
	return &inv, nil
}

// GetByShareToken loads the public view of an invoice. Unknown tokens are ErrNotFound.
func (s *InvoiceService) GetByShareToken(ctx context.Context, db *gorm.DB, token string) (*models.Invoice, error) {
	if token == "" {
		return nil, fmt.Errorf("invoice %w", ErrNotFound)
	}
	var inv models.Invoice
	err := db.WithContext(ctx).
		Preload("Items", withItems).
		Preload("Client").
		Preload("Business").
		First(&inv, "share_token = ?", token).Error
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	inv.Status = billing.DeriveStatus(&inv, s.now())
	return &inv, nil
}

// List returns a page of invoices plus the total match count. Status filters use the
// derived status, so "overdue" matches sent invoices past their due date.
func (s *InvoiceService) List(ctx context.Context, db *gorm.DB, businessID string, f ListFilter) ([]models.Invoice, int64, error) {
	now := s.now()
	query := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&models.Invoice{}).Where("business_id = ?", businessID)
		if f.ClientId != "" {
			q = q.Where("client_id = ?", f.ClientId)
		}
		if f.Status != "" {
			q = statusFilter(q, f.Status, billing.DateOf(now))
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.Invoice
	if err := query().Preload("Client").
		Order("issue_date DESC").Order("created_at DESC").
		Limit(limit).Offset(f.Offset).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Status = billing.DeriveStatus(&out[i], now)
	}
	return out, total, nil
}

var openStatuses = []models.InvoiceStatus{models.StatusSent, models.StatusPartiallyPaid, models.StatusOverdue}

func statusFilter(q *gorm.DB, status models.InvoiceStatus, today time.Time) *gorm.DB {
	const pastDue = "due_date < ? AND amount_paid < total"
	switch status {
	case models.StatusOverdue:
		return q.Where("status IN ?", openStatuses).Where(pastDue, today)
	case models.StatusSent:
		return q.Where("(status = ? OR (status = ? AND amount_paid = 0))", models.StatusSent, models.StatusOverdue).
			Where("NOT ("+pastDue+")", today)
	case models.StatusPartiallyPaid:
		return q.Where("(status = ? OR (status = ? AND amount_paid > 0))", models.StatusPartiallyPaid, models.StatusOverdue).
			Where("NOT ("+pastDue+")", today)
	default:
		return q.Where("status = ?", status)
	}
}

// Create stores a new draft. Without an explicit number the business sequence supplies one.
func (s *InvoiceService) Create(ctx context.Context, db *gorm.DB, businessID string, in InvoiceInput) (*models.Invoice, error) {
	db = db.WithContext(ctx)
	var business models.Business
	if err := db.First(&business, "id = ?", businessID).Error; err != nil {
		return nil, notFound(err, "business")
	}

	token, err := NewShareToken()
	if err != nil {
		return nil, err
	}
	inv := models.Invoice{
		BusinessId: businessID,
		Status:     models.StatusDraft,
		AmountPaid: decimal.Zero,
		ShareToken: token,
	}
	if err := s.apply(db, &business, &inv, in); err != nil {
		return nil, err
	}

	if inv.InvoiceNumber == "" {
		if inv.InvoiceNumber, err = nextInvoiceNumber(db, businessID); err != nil {
			return nil, err
		}
	}

	if err := db.Create(&inv).Error; err != nil {
		return nil, err
	}
	cache.InvalidateBusiness(ctx, businessID)
	s.Log.Info().Str("invoice_id", inv.Id).Str("number", inv.InvoiceNumber).Msg("invoice created")
	return s.Get(ctx, db, businessID, inv.Id)
}

// Update replaces the editable state and recomputes totals and status. Paid invoices are frozen.
func (s *InvoiceService) Update(ctx context.Context, db *gorm.DB, businessID, id string, in InvoiceInput) (*models.Invoice, error) {
	db = db.WithContext(ctx)
	var inv models.Invoice
	if err := db.Scopes(database.ForBusiness(businessID)).First(&inv, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	if inv.Status == models.StatusPaid {
		return nil, conflict("paid invoices cannot be edited")
	}
	var business models.Business
	if err := db.First(&business, "id = ?", businessID).Error; err != nil {
		return nil, notFound(err, "business")
	}

	if err := s.apply(db, &business, &inv, in); err != nil {
		return nil, err
	}
	if inv.Total.LessThan(inv.AmountPaid) {
		return nil, invalid("items", "total %s is below the amount already paid %s", inv.Total.StringFixed(2), inv.AmountPaid.StringFixed(2))
	}
	if inv.InvoiceNumber == "" {
		var err error
		if inv.InvoiceNumber, err = nextInvoiceNumber(db, businessID); err != nil {
			return nil, err
		}
	}
	billing.RecomputeStatus(&inv, s.now())

	items := inv.Items
	inv.Items = nil
	if err := db.Where("invoice_id = ?", inv.Id).Delete(&models.InvoiceItem{}).Error; err != nil {
		return nil, err
	}
	for i := range items {
		items[i].InvoiceId = inv.Id
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return nil, err
		}
	}
	if err := db.Omit("Items", "Client", "Business", "Payments").Save(&inv).Error; err != nil {
		return nil, err
	}

	cache.InvalidateBusiness(ctx, businessID)
	return s.Get(ctx, db, businessID, inv.Id)
}

// apply copies validated input onto inv: client, items and totals, dates, payment method and
// the recurring schedule.
func (s *InvoiceService) apply(db *gorm.DB, business *models.Business, inv *models.Invoice, in InvoiceInput) error {
	today := billing.DateOf(s.now())

	inv.ClientId = nil
	if in.ClientId != nil && *in.ClientId != "" {
		var n int64
		if err := db.Model(&models.Client{}).Scopes(database.ForBusiness(business.Id)).
			Where("id = ?", *in.ClientId).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return invalid("client_id", "client does not exist")
		}
		clientID := *in.ClientId
		inv.ClientId = &clientID
	}

	number := strings.TrimSpace(in.InvoiceNumber)
	if number != "" && number != inv.InvoiceNumber {
		taken, err := invoiceNumberTaken(db, business.Id, number, inv.Id)
		if err != nil {
			return err
		}
		if taken {
			return conflict("invoice number %s is already in use", number)
		}
		inv.InvoiceNumber = number
	}

	items, err := s.buildItems(db, business.Id, in.Items)
	if err != nil {
		return err
	}
	lines := make([]billing.Line, len(items))
	for i, it := range items {
		rate := it.TaxRate
		lines[i] = billing.Line{Quantity: it.Quantity, Rate: it.Rate, TaxRate: &rate}
	}
	totals, err := billing.ComputeTotals(lines, in.Shipping)
	if err != nil {
		if errors.Is(err, billing.ErrNegativeQuantity) {
			return invalid("items", "%s", err.Error())
		}
		return invalid("shipping", "%s", err.Error())
	}
	for i := range items {
		items[i].TaxAmount = totals.Lines[i].TaxAmount
		items[i].LineTotal = totals.Lines[i].LineTotal
	}
	inv.Items = items
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.Shipping = totals.Shipping
	inv.Total = totals.Total

	issue, err := parseDate("issue_date", in.IssueDate)
	if err != nil {
		return err
	}
	switch {
	case issue != nil:
		inv.IssueDate = *issue
	case inv.IssueDate.IsZero():
		inv.IssueDate = today
	}
	due, err := parseDate("due_date", in.DueDate)
	if err != nil {
		return err
	}
	switch {
	case due != nil:
		inv.DueDate = *due
	case inv.DueDate.IsZero() || issue != nil:
		inv.DueDate = inv.IssueDate.AddDate(0, 0, paymentTerms(business))
	}
	if inv.DueDate.Before(inv.IssueDate) {
		return invalid("due_date", "must not be before the issue date")
	}

	inv.Notes = strings.TrimSpace(in.Notes)
	inv.PaymentMethod = in.PaymentMethod
	if inv.PaymentMethod == "" {
		inv.PaymentMethod = defaultPaymentMethod(business)
	}

	return s.applyRecurring(inv, in.Recurring)
}

func (s *InvoiceService) buildItems(db *gorm.DB, businessID string, in []ItemInput) ([]models.InvoiceItem, error) {
	rates := map[string]decimal.Decimal{}
	for _, it := range in {
		if it.TaxTypeId != nil && *it.TaxTypeId != "" {
			rates[*it.TaxTypeId] = decimal.Zero
		}
	}
	if len(rates) > 0 {
		ids := make([]string, 0, len(rates))
		for id := range rates {
			ids = append(ids, id)
		}
		var taxTypes []models.TaxType
		if err := db.Scopes(database.ForBusiness(businessID)).Where("id IN ?", ids).Find(&taxTypes).Error; err != nil {
			return nil, err
		}
		for _, tt := range taxTypes {
			rates[tt.Id] = tt.Rate
		}
		if len(taxTypes) != len(ids) {
			known := map[string]bool{}
			for _, tt := range taxTypes {
				known[tt.Id] = true
			}
			for i, it := range in {
				if it.TaxTypeId != nil && *it.TaxTypeId != "" && !known[*it.TaxTypeId] {
					return nil, invalid(fmt.Sprintf("items[%d].tax_type_id", i), "tax type does not exist")
				}
			}
		}
	}

	items := make([]models.InvoiceItem, len(in))
	for i, it := range in {
		if it.Quantity.IsNegative() {
			return nil, invalid(fmt.Sprintf("items[%d].quantity", i), "must not be negative")
		}
		item := models.InvoiceItem{
			Position:    i,
			Description: strings.TrimSpace(it.Description),
			Quantity:    billing.Round2(it.Quantity), // numeric(12,2)
			Rate:        billing.Round2(it.Rate),
			TaxRate:     decimal.Zero,
		}
		if it.TaxTypeId != nil && *it.TaxTypeId != "" {
			id := *it.TaxTypeId
			item.TaxTypeId = &id
			item.TaxRate = rates[id]
		}
		items[i] = item
	}
	return items, nil
}

// applyRecurring stores the schedule and places the next generation date. Monthly and yearly
// schedules without an explicit anchor are pinned to the day of the start (or issue) date so a
// short month does not drag later occurrences down.
func (s *InvoiceService) applyRecurring(inv *models.Invoice, in *RecurringInput) error {
	if in == nil {
		inv.IsRecurring = false
		inv.RecurringFrequency = ""
		inv.RecurringEvery = 0
		inv.RecurringDay = nil
		inv.RecurringMonth = nil
		inv.NextRecurringDate = nil
		return nil
	}
	if inv.RecurringTemplateId != nil {
		return invalid("recurring", "generated invoices cannot be recurring templates")
	}

	every := in.Every
	if every == 0 {
		every = 1
	}
	sched := billing.Schedule{Frequency: in.Frequency, Every: every, Day: in.Day, Month: in.Month}
	if err := sched.Validate(); err != nil {
		return invalid("recurring", "%s", err.Error())
	}

	unchanged := inv.IsRecurring && inv.NextRecurringDate != nil && in.StartDate == "" &&
		inv.RecurringFrequency == sched.Frequency && inv.RecurringEvery == sched.Every &&
		(in.Day == nil || (inv.RecurringDay != nil && *inv.RecurringDay == *in.Day)) &&
		(in.Month == nil || (inv.RecurringMonth != nil && *inv.RecurringMonth == *in.Month))
	if unchanged {
		return nil
	}

	start, err := parseDate("recurring.start_date", in.StartDate)
	if err != nil {
		return err
	}
	base := inv.IssueDate
	switch {
	case start != nil:
		base = *start
	case inv.LastRecurringDate != nil:
		base = *inv.LastRecurringDate
	}
	if sched.Frequency == models.FrequencyMonthly || sched.Frequency == models.FrequencyYearly {
		if sched.Day == nil {
			day := base.Day()
			sched.Day = &day
		}
		if sched.Frequency == models.FrequencyYearly && sched.Month == nil {
			month := int(base.Month())
			sched.Month = &month
		}
	}

	var first time.Time
	if start != nil {
		first, err = billing.FirstOccurrence(*start, sched)
	} else {
		first, err = billing.NextOccurrence(base, sched)
	}
	if err != nil {
		return invalid("recurring", "%s", err.Error())
	}

	inv.IsRecurring = true
	inv.RecurringFrequency = sched.Frequency
	inv.RecurringEvery = sched.Every
	inv.RecurringDay = sched.Day
	inv.RecurringMonth = sched.Month
	inv.NextRecurringDate = &first
	return nil
}

// Delete removes an invoice with its items. Invoices that already collected money are kept.
func (s *InvoiceService) Delete(ctx context.Context, db *gorm.DB, businessID, id string) error {
	db = db.WithContext(ctx)
	var inv models.Invoice
	if err := db.Scopes(database.ForBusiness(businessID)).First(&inv, "id = ?", id).Error; err != nil {
		return notFound(err, "invoice")
	}

	var completed int64
	if err := db.Model(&models.Payment{}).
		Where("invoice_id = ? AND status = ?", inv.Id, models.PaymentCompleted).
		Count(&completed).Error; err != nil {
		return err
	}
	if completed > 0 {
		return conflict("invoice has completed payments; delete the payments first")
	}

	if err := db.Where("invoice_id = ?", inv.Id).Delete(&models.Payment{}).Error; err != nil {
		return err
	}
	if err := db.Where("invoice_id = ?", inv.Id).Delete(&models.InvoiceVersion{}).Error; err != nil {
		return err
	}
	if inv.IsRecurring {
		// instances outlive their template
		if err := db.Model(&models.Invoice{}).Where("recurring_template_id = ?", inv.Id).
			Update("recurring_template_id", nil).Error; err != nil {
			return err
		}
	}
	if err := db.Where("invoice_id = ?", inv.Id).Delete(&models.InvoiceItem{}).Error; err != nil {
		return err
	}
	if err := db.Delete(&inv).Error; err != nil {
		return err
	}

	cache.InvalidateBusiness(ctx, businessID)
	s.Log.Info().Str("invoice_id", inv.Id).Msg("invoice deleted")
	return nil
}

// Duplicate copies an invoice into a new draft dated today.
func (s *InvoiceService) Duplicate(ctx context.Context, db *gorm.DB, businessID, id string) (*models.Invoice, error) {
	db = db.WithContext(ctx)
	var src models.Invoice
	if err := db.Scopes(database.ForBusiness(businessID)).Preload("Items", withItems).
		First(&src, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	var business models.Business
	if err := db.First(&business, "id = ?", businessID).Error; err != nil {
		return nil, notFound(err, "business")
	}

	inv, err := cloneInvoice(&src, &business, billing.DateOf(s.now()))
	if err != nil {
		return nil, err
	}
	if inv.InvoiceNumber, err = nextInvoiceNumber(db, businessID); err != nil {
		return nil, err
	}
	if err := db.Create(inv).Error; err != nil {
		return nil, err
	}
	cache.InvalidateBusiness(ctx, businessID)
	return s.Get(ctx, db, businessID, inv.Id)
}

// cloneInvoice builds an unsaved draft copy of src issued on issue. Number, recurring
// provenance and persistence are left to the caller.
func cloneInvoice(src *models.Invoice, business *models.Business, issue time.Time) (*models.Invoice, error) {
	token, err := NewShareToken()
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{
		BusinessId:    src.BusinessId,
		ClientId:      src.ClientId,
		Status:        models.StatusDraft,
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, paymentTerms(business)),
		Subtotal:      src.Subtotal,
		TaxAmount:     src.TaxAmount,
		Shipping:      src.Shipping,
		Total:         src.Total,
		AmountPaid:    decimal.Zero,
		Notes:         src.Notes,
		PaymentMethod: src.PaymentMethod,
		ShareToken:    token,
	}
	inv.Items = make([]models.InvoiceItem, len(src.Items))
	for i, it := range src.Items {
		inv.Items[i] = models.InvoiceItem{
			Position:    it.Position,
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			TaxTypeId:   it.TaxTypeId,
			TaxRate:     it.TaxRate,
			TaxAmount:   it.TaxAmount,
			LineTotal:   it.LineTotal,
		}
	}
	return inv, nil
}
