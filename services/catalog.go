package services

import (
	"context"
	"strings"

	"invoicing-backend/database"
	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ClientInput struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=200"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	PostalCode  *string `json:"postal_code" validate:"omitempty,max=20"`
	Country     *string `json:"country"`
}

func ListClients(ctx context.Context, db *gorm.DB, businessID, search string) ([]models.Client, error) {
	q := db.WithContext(ctx).Scopes(database.ForBusiness(businessID))
	if s := strings.ToLower(strings.TrimSpace(search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	var out []models.Client
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func GetClient(ctx context.Context, db *gorm.DB, businessID, id string) (*models.Client, error) {
	var cl models.Client
	if err := db.WithContext(ctx).Scopes(database.ForBusiness(businessID)).First(&cl, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "client")
	}
	return &cl, nil
}

func CreateClient(ctx context.Context, db *gorm.DB, businessID string, in ClientInput) (*models.Client, error) {
	utils.NormalizeDTO(&in)
	if in.Name == nil || *in.Name == "" {
		return nil, invalid("name", "is required")
	}
	cl := models.Client{BusinessId: businessID, Name: *in.Name}
	db = db.WithContext(ctx)
	if err := db.Create(&cl).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&cl).Updates(utils.Changes(&in)).Error; err != nil {
		return nil, err
	}
	return GetClient(ctx, db, businessID, cl.Id)
}

func UpdateClient(ctx context.Context, db *gorm.DB, businessID, id string, in ClientInput) (*models.Client, error) {
	utils.NormalizeDTO(&in)
	if in.Name != nil && *in.Name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if _, err := GetClient(ctx, db, businessID, id); err != nil {
		return nil, err
	}
	if changes := utils.Changes(&in); len(changes) > 0 {
		if err := db.WithContext(ctx).Model(&models.Client{}).
			Scopes(database.ForBusiness(businessID)).
			Where("id = ?", id).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	return GetClient(ctx, db, businessID, id)
}

// DeleteClient refuses while invoices still reference the client; their history must survive.
func DeleteClient(ctx context.Context, db *gorm.DB, businessID, id string) error {
	if _, err := GetClient(ctx, db, businessID, id); err != nil {
		return err
	}
	db = db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Invoice{}).Where("client_id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflict("client has %d invoice(s)", n)
	}
	return db.Scopes(database.ForBusiness(businessID)).Delete(&models.Client{}, "id = ?", id).Error
}

type TaxTypeInput struct {
	Name      *string          `json:"name" validate:"omitempty,max=100"`
	Rate      *decimal.Decimal `json:"rate"`
	IsDefault *bool            `json:"is_default"`
}

func (in *TaxTypeInput) check() error {
	utils.NormalizeDTO(in)
	if in.Name != nil && *in.Name == "" {
		return invalid("name", "must not be empty")
	}
	if in.Rate != nil && (in.Rate.IsNegative() || in.Rate.GreaterThan(hundred)) {
		return invalid("rate", "must be between 0 and 100")
	}
	return nil
}

func ListTaxTypes(ctx context.Context, db *gorm.DB, businessID string) ([]models.TaxType, error) {
	var out []models.TaxType
	err := db.WithContext(ctx).Scopes(database.ForBusiness(businessID)).
		Order("is_default DESC, name ASC").Find(&out).Error
	return out, err
}

func getTaxType(db *gorm.DB, businessID, id string) (*models.TaxType, error) {
	var tt models.TaxType
	if err := db.Scopes(database.ForBusiness(businessID)).First(&tt, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "tax type")
	}
	return &tt, nil
}

func CreateTaxType(ctx context.Context, db *gorm.DB, businessID string, in TaxTypeInput) (*models.TaxType, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, invalid("name", "is required")
	}
	if in.Rate == nil {
		return nil, invalid("rate", "is required")
	}
	db = db.WithContext(ctx)
	tt := models.TaxType{
		BusinessId: businessID,
		Name:       *in.Name,
		Rate:       *in.Rate,
		IsDefault:  in.IsDefault != nil && *in.IsDefault,
	}
	if err := db.Create(&tt).Error; err != nil {
		return nil, err
	}
	if tt.IsDefault {
		if err := clearDefaultTaxType(db, businessID, tt.Id); err != nil {
			return nil, err
		}
	}
	return &tt, nil
}

// UpdateTaxType changes a tax type. Rates already snapshotted on invoice lines are not touched.
func UpdateTaxType(ctx context.Context, db *gorm.DB, businessID, id string, in TaxTypeInput) (*models.TaxType, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	if _, err := getTaxType(db, businessID, id); err != nil {
		return nil, err
	}
	if changes := utils.Changes(&in); len(changes) > 0 {
		if err := db.Model(&models.TaxType{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	if in.IsDefault != nil && *in.IsDefault {
		if err := clearDefaultTaxType(db, businessID, id); err != nil {
			return nil, err
		}
	}
	return getTaxType(db, businessID, id)
}

func clearDefaultTaxType(db *gorm.DB, businessID, keepID string) error {
	return db.Model(&models.TaxType{}).
		Scopes(database.ForBusiness(businessID)).
		Where("id <> ? AND is_default = ?", keepID, true).
		Update("is_default", false).Error
}

// DeleteTaxType removes a tax type; invoice lines keep their rate snapshot.
func DeleteTaxType(ctx context.Context, db *gorm.DB, businessID, id string) error {
	db = db.WithContext(ctx)
	if _, err := getTaxType(db, businessID, id); err != nil {
		return err
	}
	if err := db.Model(&models.InvoiceItem{}).Where("tax_type_id = ?", id).Update("tax_type_id", nil).Error; err != nil {
		return err
	}
	return db.Delete(&models.TaxType{}, "id = ?", id).Error
}

type SavedItemInput struct {
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Rate        *decimal.Decimal `json:"rate"`
}

func ListSavedItems(ctx context.Context, db *gorm.DB, businessID string) ([]models.SavedItem, error) {
	var out []models.SavedItem
	err := db.WithContext(ctx).Scopes(database.ForBusiness(businessID)).Order("description ASC").Find(&out).Error
	return out, err
}

func getSavedItem(db *gorm.DB, businessID, id string) (*models.SavedItem, error) {
	var it models.SavedItem
	if err := db.Scopes(database.ForBusiness(businessID)).First(&it, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "saved item")
	}
	return &it, nil
}

func CreateSavedItem(ctx context.Context, db *gorm.DB, businessID string, in SavedItemInput) (*models.SavedItem, error) {
	utils.NormalizeDTO(&in)
	if in.Description == nil || *in.Description == "" {
		return nil, invalid("description", "is required")
	}
	it := models.SavedItem{BusinessId: businessID, Description: *in.Description, Rate: decimal.Zero}
	if in.Rate != nil {
		it.Rate = *in.Rate
	}
	if err := db.WithContext(ctx).Create(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func UpdateSavedItem(ctx context.Context, db *gorm.DB, businessID, id string, in SavedItemInput) (*models.SavedItem, error) {
	utils.NormalizeDTO(&in)
	if in.Description != nil && *in.Description == "" {
		return nil, invalid("description", "must not be empty")
	}
	db = db.WithContext(ctx)
	if _, err := getSavedItem(db, businessID, id); err != nil {
		return nil, err
	}
	if changes := utils.Changes(&in); len(changes) > 0 {
		if err := db.Model(&models.SavedItem{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	return getSavedItem(db, businessID, id)
}

func DeleteSavedItem(ctx context.Context, db *gorm.DB, businessID, id string) error {
	db = db.WithContext(ctx)
	if _, err := getSavedItem(db, businessID, id); err != nil {
		return err
	}
	return db.Delete(&models.SavedItem{}, "id = ?", id).Error
}
