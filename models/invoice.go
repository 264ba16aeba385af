package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusSent          InvoiceStatus = "sent"
	StatusPaid          InvoiceStatus = "paid"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusOverdue       InvoiceStatus = "overdue"
)

// PaymentMethod is the set of payment affordances offered on an invoice.
type PaymentMethod string

const (
	PaymentMethodStripe    PaymentMethod = "stripe"
	PaymentMethodETransfer PaymentMethod = "etransfer"
	PaymentMethodBoth      PaymentMethod = "both"
)

// AllowsCard reports whether the hosted card checkout may be offered.
func (m PaymentMethod) AllowsCard() bool {
	return m == PaymentMethodStripe || m == PaymentMethodBoth
}

// AllowsETransfer reports whether bank-transfer instructions may be shown.
func (m PaymentMethod) AllowsETransfer() bool {
	return m == PaymentMethodETransfer || m == PaymentMethodBoth
}

type RecurringFrequency string

const (
	FrequencyDaily   RecurringFrequency = "daily"
	FrequencyWeekly  RecurringFrequency = "weekly"
	FrequencyMonthly RecurringFrequency = "monthly"
	FrequencyYearly  RecurringFrequency = "yearly"
)

// Invoice is the live state of an invoice. Recurring templates are invoices with IsRecurring set;
// generated instances point back through RecurringTemplateId.
type Invoice struct {
	Id            string        `json:"id" gorm:"primaryKey;size:36"`
	BusinessId    string        `json:"-" gorm:"size:36;not null;uniqueIndex:idx_invoices_business_number,priority:1"`
	Business      *Business     `json:"business,omitempty" gorm:"foreignKey:BusinessId;references:Id"`
	ClientId      *string       `json:"client_id" gorm:"size:36;index"`
	Client        *Client       `json:"client,omitempty" gorm:"foreignKey:ClientId;references:Id;constraint:OnDelete:RESTRICT"`
	InvoiceNumber string        `json:"invoice_number" gorm:"size:64;not null;uniqueIndex:idx_invoices_business_number,priority:2"`
	Status        InvoiceStatus `json:"status" gorm:"size:20;not null;index"`
	IssueDate     time.Time     `json:"issue_date" gorm:"type:date;not null"`
	DueDate       time.Time     `json:"due_date" gorm:"type:date;not null;index"`

	Items      []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceId;constraint:OnDelete:CASCADE"`
	Subtotal   decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	TaxAmount  decimal.Decimal `json:"tax_amount" gorm:"type:numeric(12,2);not null"`
	Shipping   decimal.Decimal `json:"shipping" gorm:"type:numeric(12,2);not null"`
	Total      decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	AmountPaid decimal.Decimal `json:"amount_paid" gorm:"type:numeric(12,2);not null"`

	Notes         string        `json:"notes"`
	PaymentMethod PaymentMethod `json:"payment_method" gorm:"size:16;not null"`
	ShareToken    string        `json:"share_token" gorm:"size:64;not null;uniqueIndex"`

	// Recurring template configuration
	IsRecurring        bool               `json:"is_recurring" gorm:"index"`
	RecurringFrequency RecurringFrequency `json:"recurring_frequency" gorm:"size:16"`
	RecurringEvery     int                `json:"recurring_every"`
	RecurringDay       *int               `json:"recurring_day"`
	RecurringMonth     *int               `json:"recurring_month"`
	NextRecurringDate  *time.Time         `json:"next_recurring_date" gorm:"type:date;index"`
	LastRecurringDate  *time.Time         `json:"last_recurring_date" gorm:"type:date"`

	// Generated instances
	RecurringTemplateId *string    `json:"recurring_template_id" gorm:"size:36;uniqueIndex:idx_invoices_recurring_period,priority:1"`
	RecurringPeriod     *time.Time `json:"recurring_period" gorm:"type:date;uniqueIndex:idx_invoices_recurring_period,priority:2"`

	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:InvoiceId;constraint:OnDelete:RESTRICT"`

	SentAt    *time.Time `json:"sent_at"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if invoice.Id == "" {
		invoice.Id = uuid.NewString()
	}
	return
}

// Balance is what is still owed.
func (invoice *Invoice) Balance() decimal.Decimal {
	return invoice.Total.Sub(invoice.AmountPaid)
}

type InvoiceItem struct {
	Id          string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceId   string          `json:"-" gorm:"size:36;not null;index"`
	Position    int             `json:"position"`
	Description string          `json:"description" gorm:"not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,2);not null"`
	Rate        decimal.Decimal `json:"rate" gorm:"type:numeric(12,2);not null"`
	TaxTypeId   *string         `json:"tax_type_id" gorm:"size:36;index"`
	TaxType     *TaxType        `json:"-" gorm:"foreignKey:TaxTypeId;references:Id;constraint:OnDelete:SET NULL"`
	TaxRate     decimal.Decimal `json:"tax_rate" gorm:"type:numeric(5,2);not null"` // snapshot of TaxType.Rate
	TaxAmount   decimal.Decimal `json:"tax_amount" gorm:"type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2);not null"`
}

func (item *InvoiceItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.Id == "" {
		item.Id = uuid.NewString()
	}
	return
}

// InvoiceVersion is an immutable snapshot of what was delivered to the client.
type InvoiceVersion struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	InvoiceId string         `json:"invoice_id" gorm:"size:36;index:idx_invoice_versions_invoice_id_version_no,unique,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;index:idx_invoice_versions_invoice_id_version_no,unique,priority:2"`
	Kind      string         `json:"kind" gorm:"type:VARCHAR(20)"` // "sent" | "resent"
	Recipient string         `json:"recipient"`
	Snapshot  datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is a recorded payment against an invoice. Only completed payments count toward AmountPaid.
type Payment struct {
	Id                string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceId         string          `json:"invoice_id" gorm:"size:36;not null;index:idx_payments_invoice_paid_at,priority:1"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status            PaymentStatus   `json:"status" gorm:"size:16;not null"`
	Method            string          `json:"method"`
	ExternalReference *string         `json:"external_reference" gorm:"size:255;uniqueIndex"`
	Notes             string          `json:"notes"`
	PaidAt            time.Time       `json:"paid_at" gorm:"index:idx_payments_invoice_paid_at,priority:2"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.Id == "" {
		payment.Id = uuid.NewString()
	}
	return
}
