package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"invoicing-backend/config"
)

func TestLogoKey(t *testing.T) {
	key, err := LogoKey("biz-1", "image/PNG")
	if err != nil {
		t.Fatalf("LogoKey failed: %v", err)
	}
	if !strings.HasPrefix(key, "logos/biz-1/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %q", key)
	}

	if _, err := LogoKey("biz-1", "application/pdf"); err == nil {
		t.Error("expected error for non-image content type")
	}
}

func TestNew_NotConfigured(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
