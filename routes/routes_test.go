package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"invoicing-backend/controllers"
	"invoicing-backend/database"
	"invoicing-backend/mailer"
	"invoicing-backend/middlewares"
	"invoicing-backend/payments"
	"invoicing-backend/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret     = "test-jwt-secret"
	testCronSecret = "cron-secret"
)

func clock() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

type outbox struct{ sent []mailer.Message }

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

type checkout struct{}

func (checkout) Name() string            { return "stripe" }
func (checkout) SignatureHeader() string { return "Stripe-Signature" }

func (checkout) CreateLink(_ context.Context, req payments.LinkRequest) (*payments.Link, error) {
	return &payments.Link{URL: "https://pay.test/" + req.InvoiceID, Reference: "cs_" + req.InvoiceID}, nil
}

func (checkout) ParseWebhook([]byte, string) (*payments.Event, error) {
	return nil, payments.ErrInvalidSignature
}

type testServer struct {
	app  *fiber.App
	mail *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db

	mail := &outbox{}
	inv := &services.InvoiceService{Mailer: mail, PublicBaseURL: "https://app.test", Now: clock, Log: zerolog.Nop()}
	controllers.Configure(controllers.Deps{
		Invoices:  inv,
		Payments:  &services.PaymentService{Provider: checkout{}, Now: clock, Log: zerolog.Nop(), Invoices: inv},
		Recurring: &services.RecurringService{DB: db, Invoices: inv, Now: clock, Log: zerolog.Nop()},
		Provider:  checkout{},
		Now:       clock,
	})

	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	app.Use(middlewares.Observe())
	Register(app, Options{
		JWTSecret:        testSecret,
		CronSecret:       testCronSecret,
		PublicRateMax:    1000,
		PublicRateWindow: time.Minute,
	})
	return &testServer{app: app, mail: mail}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := middlewares.GenerateJWT([]byte(testSecret), services.Identity{
		ExternalID: subject,
		Email:      subject + "@example.com",
		FirstName:  "Test",
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type call struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (s *testServer) do(t *testing.T, c call) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (s *testServer) expect(t *testing.T, c call, status int) map[string]any {
	t.Helper()
	resp, out := s.do(t, c)
	if resp.StatusCode != status {
		t.Fatalf("%s %s: expected %d, got %d (%v)", c.method, c.path, status, resp.StatusCode, out)
	}
	return out
}

// onboard creates a business and a client for subject and returns the token and client id.
func (s *testServer) onboard(t *testing.T, subject string) (string, string) {
	t.Helper()
	tok := token(t, subject)
	s.expect(t, call{method: "POST", path: "/api/business", token: tok, body: map[string]any{
		"name":        "Studio " + subject,
		"currency":    "cad",
		"accept_card": true,
	}}, fiber.StatusCreated)
	cl := s.expect(t, call{method: "POST", path: "/api/clients", token: tok, body: map[string]any{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	}}, fiber.StatusCreated)
	return tok, cl["id"].(string)
}

func (s *testServer) createInvoice(t *testing.T, tok, clientID string) map[string]any {
	t.Helper()
	return s.expect(t, call{method: "POST", path: "/api/invoices", token: tok, body: map[string]any{
		"client_id": clientID,
		"items": []map[string]any{
			{"description": "Design", "quantity": "2", "rate": "50"},
			{"description": "Hosting", "quantity": "1", "rate": "100"},
		},
	}}, fiber.StatusCreated)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	s.expect(t, call{method: "GET", path: "/api/invoices"}, fiber.StatusUnauthorized)
	s.expect(t, call{method: "GET", path: "/api/invoices", token: "not-a-jwt"}, fiber.StatusUnauthorized)
}

func TestOnboardingGate(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "new-user")

	me := s.expect(t, call{method: "GET", path: "/api/me", token: tok}, fiber.StatusOK)
	if me["business"] != nil {
		t.Errorf("expected no business yet, got %v", me["business"])
	}
	s.expect(t, call{method: "GET", path: "/api/invoices", token: tok}, fiber.StatusForbidden)

	b := s.expect(t, call{method: "POST", path: "/api/business", token: tok, body: map[string]any{
		"name": "Acme", "currency": "usd",
	}}, fiber.StatusCreated)
	if b["currency"] != "USD" {
		t.Errorf("expected USD, got %v", b["currency"])
	}
	s.expect(t, call{method: "GET", path: "/api/invoices", token: tok}, fiber.StatusOK)
	s.expect(t, call{method: "POST", path: "/api/business", token: tok, body: map[string]any{
		"name": "Again", "currency": "usd",
	}}, fiber.StatusConflict)
}

func TestInvoiceLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok, clientID := s.onboard(t, "owner")

	inv := s.createInvoice(t, tok, clientID)
	if inv["total"] != "200" || inv["status"] != "draft" || inv["invoice_number"] != "INV-0001" {
		t.Fatalf("unexpected invoice %v", inv)
	}
	id := inv["id"].(string)

	s.expect(t, call{method: "POST", path: "/api/invoices", token: tok, body: map[string]any{
		"items": []map[string]any{{"description": "Bad", "quantity": "-1", "rate": "5"}},
	}}, fiber.StatusUnprocessableEntity)

	sent := s.expect(t, call{method: "POST", path: "/api/invoices/" + id + "/send", token: tok}, fiber.StatusOK)
	if sent["delivered"] != true || len(s.mail.sent) != 1 {
		t.Fatalf("expected delivery, got %v", sent)
	}

	pay := call{
		method:  "POST",
		path:    "/api/invoices/" + id + "/payments",
		token:   tok,
		body:    map[string]any{"amount": "50"},
		headers: map[string]string{"Idempotency-Key": "pay-1"},
	}
	first := s.expect(t, pay, fiber.StatusCreated)
	resp, replay := s.do(t, pay)
	if resp.StatusCode != fiber.StatusCreated || resp.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected a replayed 201, got %d %v", resp.StatusCode, replay)
	}
	if replay["payment"].(map[string]any)["id"] != first["payment"].(map[string]any)["id"] {
		t.Error("replay must return the stored response")
	}

	got := s.expect(t, call{method: "GET", path: "/api/invoices/" + id, token: tok}, fiber.StatusOK)
	if got["amount_paid"] != "50" || got["status"] != "partially_paid" {
		t.Errorf("expected a single 50 payment, got paid=%v status=%v", got["amount_paid"], got["status"])
	}

	s.expect(t, call{method: "POST", path: "/api/invoices/" + id + "/payments", token: tok,
		body: map[string]any{"amount": "150.02"}}, fiber.StatusUnprocessableEntity)
	s.expect(t, call{method: "DELETE", path: "/api/invoices/" + id, token: tok}, fiber.StatusConflict)
	s.expect(t, call{method: "DELETE", path: "/api/clients/" + clientID, token: tok}, fiber.StatusConflict)

	versions := s.expect(t, call{method: "GET", path: "/api/invoices/" + id + "/versions", token: tok}, fiber.StatusOK)
	if n := len(versions["versions"].([]any)); n != 1 {
		t.Errorf("expected one version, got %d", n)
	}

	dash := s.expect(t, call{method: "GET", path: "/api/dashboard", token: tok}, fiber.StatusOK)
	if dash["outstanding"] != "150" {
		t.Errorf("expected outstanding 150, got %v", dash["outstanding"])
	}
}

func TestCrossTenantIsNotFound(t *testing.T) {
	s := newTestServer(t)
	tok, clientID := s.onboard(t, "alice")
	id := s.createInvoice(t, tok, clientID)["id"].(string)

	other, _ := s.onboard(t, "mallory")
	s.expect(t, call{method: "GET", path: "/api/invoices/" + id, token: other}, fiber.StatusNotFound)
	s.expect(t, call{method: "POST", path: "/api/invoices/" + id + "/payments", token: other,
		body: map[string]any{"amount": "10"}}, fiber.StatusNotFound)
	s.expect(t, call{method: "DELETE", path: "/api/invoices/" + id, token: other}, fiber.StatusNotFound)
}

func TestPublicInvoice(t *testing.T) {
	s := newTestServer(t)
	s.expect(t, call{method: "GET", path: "/api/public/invoices/unknown-token"}, fiber.StatusNotFound)

	tok, clientID := s.onboard(t, "owner")
	inv := s.createInvoice(t, tok, clientID)
	share := inv["share_token"].(string)

	view := s.expect(t, call{method: "GET", path: "/api/public/invoices/" + share}, fiber.StatusOK)
	if view["payment"].(map[string]any)["card"] != false {
		t.Error("a draft must not offer card payment")
	}
	s.expect(t, call{method: "POST", path: "/api/public/invoices/" + share + "/pay"}, fiber.StatusConflict)

	s.expect(t, call{method: "POST", path: "/api/invoices/" + inv["id"].(string) + "/mark-sent", token: tok}, fiber.StatusOK)
	view = s.expect(t, call{method: "GET", path: "/api/public/invoices/" + share}, fiber.StatusOK)
	if view["payment"].(map[string]any)["card"] != true {
		t.Errorf("expected card payment to be offered, got %v", view["payment"])
	}
	link := s.expect(t, call{method: "POST", path: "/api/public/invoices/" + share + "/pay"}, fiber.StatusOK)
	if link["url"] == "" {
		t.Error("expected a checkout url")
	}

	resp, _ := s.do(t, call{method: "GET", path: "/api/public/invoices/" + share + "/pdf"})
	if resp.StatusCode != fiber.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Errorf("expected a pdf, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestCronAndWebhooks(t *testing.T) {
	s := newTestServer(t)
	s.expect(t, call{method: "POST", path: "/api/cron/recurring"}, fiber.StatusUnauthorized)
	s.expect(t, call{method: "POST", path: "/api/cron/recurring",
		headers: map[string]string{middlewares.CronSecretHeader: "wrong"}}, fiber.StatusUnauthorized)

	res := s.expect(t, call{method: "POST", path: "/api/cron/recurring",
		headers: map[string]string{middlewares.CronSecretHeader: testCronSecret}}, fiber.StatusOK)
	if res["examined"] != float64(0) {
		t.Errorf("expected an empty run, got %v", res)
	}
	s.expect(t, call{method: "POST", path: "/api/cron/overdue",
		headers: map[string]string{middlewares.CronSecretHeader: testCronSecret}}, fiber.StatusOK)

	s.expect(t, call{method: "POST", path: "/api/webhooks/stripe", body: map[string]any{"type": "x"}}, fiber.StatusBadRequest)
	s.expect(t, call{method: "POST", path: "/api/webhooks/razorpay", body: map[string]any{}}, fiber.StatusNotFound)
}
