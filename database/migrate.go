package database

import (
	"fmt"

	"invoicing-backend/models"

	"gorm.io/gorm"
)

// Migrate applies idempotent schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Money column types (NUMERIC(12,2)) and CHECK constraints on postgres
// - Partial unique index for the single default tax type per business
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Business{},
		&models.Client{},
		&models.TaxType{},
		&models.SavedItem{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.InvoiceVersion{},
		&models.Payment{},
		&models.IdempotencyKey{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE invoices      ALTER COLUMN subtotal    TYPE numeric(12,2)`,
			`ALTER TABLE invoices      ALTER COLUMN tax_amount  TYPE numeric(12,2)`,
			`ALTER TABLE invoices      ALTER COLUMN shipping    TYPE numeric(12,2)`,
			`ALTER TABLE invoices      ALTER COLUMN total       TYPE numeric(12,2)`,
			`ALTER TABLE invoices      ALTER COLUMN amount_paid TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items ALTER COLUMN rate        TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items ALTER COLUMN tax_amount  TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items ALTER COLUMN line_total  TYPE numeric(12,2)`,
			`ALTER TABLE payments      ALTER COLUMN amount      TYPE numeric(12,2)`,
			`ALTER TABLE saved_items   ALTER COLUMN rate        TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_tax_types_one_default ON tax_types (business_id) WHERE is_default`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_recurring_due ON invoices (next_recurring_date) WHERE is_recurring`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := map[string]string{
			"chk_payments_amount_positive":     `ALTER TABLE payments ADD CONSTRAINT chk_payments_amount_positive CHECK (amount > 0)`,
			"chk_invoice_items_quantity_nonneg": `ALTER TABLE invoice_items ADD CONSTRAINT chk_invoice_items_quantity_nonneg CHECK (quantity >= 0)`,
			"chk_invoices_amount_paid_nonneg":  `ALTER TABLE invoices ADD CONSTRAINT chk_invoices_amount_paid_nonneg CHECK (amount_paid >= 0)`,
			"chk_invoices_status":              `ALTER TABLE invoices ADD CONSTRAINT chk_invoices_status CHECK (status IN ('draft','sent','paid','partially_paid','overdue'))`,
			"chk_invoices_recurring_every":     `ALTER TABLE invoices ADD CONSTRAINT chk_invoices_recurring_every CHECK (NOT is_recurring OR recurring_every >= 1)`,
		}
		for name, stmt := range checks {
			guarded := fmt.Sprintf(`
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		%s;
	END IF;
END $$;`, name, stmt)
			if err := tx.Exec(guarded).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", name, err)
			}
		}
		return nil
	})
}
