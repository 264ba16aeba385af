package cmd

import (
	"net/http/httptest"
	"testing"

	"invoicing-backend/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = "*"
	cfg.Server.BodyLimitMB = 1
	cfg.Server.RateLimitMax = 1000
	cfg.Server.RateLimitWindow = 60
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.Issuer = "test"
	cfg.Cron.Secret = "cron"
	return cfg
}

func TestNewApp(t *testing.T) {
	app := newApp(testConfig())

	tests := []struct {
		path string
		want int
	}{
		{"/health", 200},
		{"/metrics", 200},
		{"/api/invoices", 401},
		{"/api/nothing-here", 401},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestNewServices_NoProcessorCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.Provider = "stripe"

	svc, err := newServices(cfg)
	if err != nil {
		t.Fatalf("newServices failed: %v", err)
	}
	if svc.provider != nil || svc.payments.Provider != nil {
		t.Error("expected online payments to be disabled without credentials")
	}
	if svc.recurring.Invoices != svc.invoices || svc.payments.Invoices != svc.invoices {
		t.Error("services must share one invoice service")
	}
}
