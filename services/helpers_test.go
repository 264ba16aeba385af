package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"invoicing-backend/database"
	"invoicing-backend/mailer"
	"invoicing-backend/models"
	"invoicing-backend/payments"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeProvider struct {
	links int
}

func (f *fakeProvider) Name() string            { return "stripe" }
func (f *fakeProvider) SignatureHeader() string { return "Stripe-Signature" }

func (f *fakeProvider) CreateLink(_ context.Context, req payments.LinkRequest) (*payments.Link, error) {
	f.links++
	return &payments.Link{URL: "https://pay.test/" + req.InvoiceID, Reference: fmt.Sprintf("cs_test_%s_%d", req.InvoiceNumber, f.links)}, nil
}

func (f *fakeProvider) ParseWebhook([]byte, string) (*payments.Event, error) {
	return nil, payments.ErrInvalidSignature
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	mail     *fakeMailer
	invoices *InvoiceService
	payments *PaymentService
	provider *fakeProvider
	business *models.Business
	client   *models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	mail := &fakeMailer{}
	inv := &InvoiceService{
		Mailer:        mail,
		PublicBaseURL: "https://app.test",
		Now:           clock,
		Log:           zerolog.Nop(),
	}
	provider := &fakeProvider{}
	f := &fixture{
		db:       db,
		mail:     mail,
		invoices: inv,
		provider: provider,
		payments: &PaymentService{Provider: provider, Now: clock, Log: zerolog.Nop(), Invoices: inv},
	}
	f.business = seedBusiness(t, db, "owner-1")
	f.client = seedClient(t, db, f.business.Id, "jane@example.com")
	return f
}

func seedBusiness(t *testing.T, db *gorm.DB, externalID string) *models.Business {
	t.Helper()
	user := models.User{ExternalId: externalID, Email: externalID + "@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	b := models.Business{
		UserId:           user.Id,
		Name:             "Acme Studio",
		Currency:         "CAD",
		TaxRate:          decimal.Zero,
		AcceptCard:       true,
		AcceptETransfer:  true,
		Email:            "billing@acme.test",
		PaymentTermsDays: 30,
		InvoicePrefix:    "INV-",
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}
	return &b
}

func seedClient(t *testing.T, db *gorm.DB, businessID, email string) *models.Client {
	t.Helper()
	c := models.Client{BusinessId: businessID, Name: "Jane Doe", Email: email}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return &c
}

func seedTaxType(t *testing.T, db *gorm.DB, businessID, rate string) *models.TaxType {
	t.Helper()
	tt := models.TaxType{BusinessId: businessID, Name: "GST", Rate: decimal.RequireFromString(rate)}
	if err := db.Create(&tt).Error; err != nil {
		t.Fatalf("seed tax type: %v", err)
	}
	return &tt
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }

// twoItemInput is 2 x 50 untaxed plus 1 x 100 at the given tax type: 200 + 10 = 210.
func twoItemInput(clientID, taxTypeID string) InvoiceInput {
	return InvoiceInput{
		ClientId:  strp(clientID),
		IssueDate: "2024-03-01",
		Items: []ItemInput{
			{Description: "Design", Quantity: dec("2"), Rate: dec("50")},
			{Description: "Hosting", Quantity: dec("1"), Rate: dec("100"), TaxTypeId: strp(taxTypeID)},
		},
	}
}

func (f *fixture) createSent(t *testing.T) *models.Invoice {
	t.Helper()
	ctx := context.Background()
	tt := seedTaxType(t, f.db, f.business.Id, "10")
	inv, err := f.invoices.Create(ctx, f.db, f.business.Id, twoItemInput(f.client.Id, tt.Id))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv, err = f.invoices.MarkSent(ctx, f.db, f.business.Id, inv.Id); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	return inv
}
