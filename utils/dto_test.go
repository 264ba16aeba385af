package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

type patchDTO struct {
	Name     *string          `json:"name"`
	Rate     *decimal.Decimal `json:"rate"`
	Email    *string          `json:"email,omitempty"`
	Internal *string          `json:"-"`
	Title    string           `json:"title"`
}

func TestNormalizeDTO(t *testing.T) {
	name := "  Acme  "
	rate := decimal.RequireFromString("12.345")
	dto := patchDTO{Name: &name, Rate: &rate, Title: "  Mr "}

	NormalizeDTO(&dto)

	if *dto.Name != "Acme" || dto.Title != "Mr" {
		t.Errorf("strings not trimmed: %q %q", *dto.Name, dto.Title)
	}
	if !dto.Rate.Equal(decimal.RequireFromString("12.35")) {
		t.Errorf("expected 12.35, got %s", dto.Rate)
	}
	if dto.Email != nil {
		t.Error("nil fields must stay nil")
	}
}

func TestChanges(t *testing.T) {
	name := "Acme"
	secret := "x"
	got := Changes(&patchDTO{Name: &name, Internal: &secret, Title: "ignored"})
	if len(got) != 1 || got["name"] != "Acme" {
		t.Errorf("unexpected changes %v", got)
	}
	if len(Changes(patchDTO{})) != 0 {
		t.Error("non-pointer input must yield no changes")
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		in       string
		def, max int
		want     int
	}{
		{"", 20, 100, 20},
		{"abc", 20, 100, 20},
		{"-1", 20, 100, 20},
		{"50", 20, 100, 50},
		{"500", 20, 100, 100},
		{" 7 ", 0, 0, 7},
	}
	for _, tt := range tests {
		if got := QueryInt(tt.in, tt.def, tt.max); got != tt.want {
			t.Errorf("QueryInt(%q, %d, %d) = %d, want %d", tt.in, tt.def, tt.max, got, tt.want)
		}
	}
}
