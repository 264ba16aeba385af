package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoicing-backend/billing"
	"invoicing-backend/cache"
	"invoicing-backend/metrics"
	"invoicing-backend/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecurringResult struct {
	Examined   int      `json:"examined"`
	Created    int      `json:"created"`
	EmailsSent int      `json:"emails_sent"`
	Errors     []string `json:"errors"`
}

// RecurringService materializes due recurring templates into real invoices.
type RecurringService struct {
	DB       *gorm.DB
	Invoices *InvoiceService
	Now      func() time.Time
	Log      zerolog.Logger
}

var errNotDue = errors.New("template is no longer due")

func (s *RecurringService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ProcessDue generates one invoice per template whose next date is today or earlier. Each
// template runs in its own transaction: a failing template is reported and left unadvanced
// while the rest of the batch continues. Re-running on the same day creates nothing new.
func (s *RecurringService) ProcessDue(ctx context.Context) (*RecurringResult, error) {
	today := billing.DateOf(s.now())
	db := s.DB.WithContext(ctx)

	var ids []string
	if err := db.Model(&models.Invoice{}).
		Where("is_recurring = ? AND next_recurring_date IS NOT NULL AND next_recurring_date <= ?", true, today).
		Order("next_recurring_date ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	res := &RecurringResult{Examined: len(ids), Errors: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := s.Log.With().Str("template_id", id).Logger()

		var created *models.Invoice
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			created, err = s.generate(tx, id, today)
			return err
		})
		switch {
		case errors.Is(err, errNotDue):
			log.Debug().Msg("template already processed")
			continue
		case err != nil:
			metrics.RecurringFailures.Inc()
			log.Error().Err(err).Msg("recurring generation failed")
			res.Errors = append(res.Errors, fmt.Sprintf("template %s: %v", id, err))
			continue
		}

		res.Created++
		metrics.RecurringInvoicesCreated.Inc()
		cache.InvalidateBusiness(ctx, created.BusinessId)
		log.Info().Str("invoice_id", created.Id).Str("number", created.InvoiceNumber).Msg("recurring invoice created")

		if created.Client == nil || created.Client.Email == "" {
			continue
		}
		var delivery *DeliveryResult
		dctx := cache.DeferInvalidation(ctx)
		err = db.Transaction(func(tx *gorm.DB) error {
			var err error
			delivery, err = s.Invoices.Deliver(dctx, tx, created.BusinessId, created.Id, false)
			return err
		})
		if err == nil {
			cache.FlushInvalidation(dctx)
		}
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("invoice %s: email: %v", created.InvoiceNumber, err))
		case !delivery.Delivered:
			res.Errors = append(res.Errors, fmt.Sprintf("invoice %s: email: %s", created.InvoiceNumber, delivery.EmailError))
		default:
			res.EmailsSent++
		}
	}

	s.Log.Info().
		Int("examined", res.Examined).
		Int("created", res.Created).
		Int("emails_sent", res.EmailsSent).
		Int("errors", len(res.Errors)).
		Msg("recurring run finished")
	return res, nil
}

// generate creates the instance for the template's current occurrence and moves the template
// to its first occurrence after today.
func (s *RecurringService) generate(tx *gorm.DB, templateID string, today time.Time) (*models.Invoice, error) {
	var tpl models.Invoice
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tpl, "id = ?", templateID).Error; err != nil {
		return nil, notFound(err, "template")
	}
	if !tpl.IsRecurring || tpl.NextRecurringDate == nil || tpl.NextRecurringDate.After(today) {
		return nil, errNotDue
	}
	occurrence := billing.DateOf(*tpl.NextRecurringDate)
	sched := billing.ScheduleOf(&tpl)
	next, err := billing.AdvancePast(occurrence, today, sched)
	if err != nil {
		return nil, err
	}

	if err := tx.Where("invoice_id = ?", tpl.Id).Order("position ASC").Find(&tpl.Items).Error; err != nil {
		return nil, err
	}
	var business models.Business
	if err := tx.First(&business, "id = ?", tpl.BusinessId).Error; err != nil {
		return nil, notFound(err, "business")
	}
	var client *models.Client
	if tpl.ClientId != nil {
		client = &models.Client{}
		if err := tx.First(client, "id = ? AND business_id = ?", *tpl.ClientId, tpl.BusinessId).Error; err != nil {
			return nil, notFound(err, "client")
		}
	}

	inv, err := cloneInvoice(&tpl, &business, today)
	if err != nil {
		return nil, err
	}
	templateRef := tpl.Id
	inv.RecurringTemplateId = &templateRef
	inv.RecurringPeriod = &occurrence
	if inv.InvoiceNumber, err = nextInvoiceNumber(tx, tpl.BusinessId); err != nil {
		return nil, err
	}
	if err := tx.Create(inv).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Invoice{}).Where("id = ?", tpl.Id).Updates(map[string]any{
		"last_recurring_date": occurrence,
		"next_recurring_date": next,
	}).Error; err != nil {
		return nil, err
	}
	inv.Client = client
	return inv, nil
}
