// Package pdf renders invoices to PDF.
package pdf

import (
	"bytes"
	"fmt"

	"invoicing-backend/models"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", currency, d.StringFixed(2))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// RenderInvoice draws an A4 invoice. inv must carry its Business, Client (optional) and Items.
func RenderInvoice(inv *models.Invoice) ([]byte, error) {
	if inv.Business == nil {
		return nil, fmt.Errorf("invoice %s: business not loaded", inv.Id)
	}
	b := inv.Business
	cur := b.Currency

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Invoice %s", inv.InvoiceNumber), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(110, 10, tr(b.Name), "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range []string{b.Address, cityLine(b.City, b.State, b.PostalCode), b.Country, b.Email, b.Phone} {
		if line != "" {
			pdf.CellFormat(110, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	if b.TaxNumber != "" {
		pdf.CellFormat(110, 5, tr("Tax no: "+b.TaxNumber), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Meta + bill to
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Bill to", "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 6, fmt.Sprintf("Invoice # %s", tr(inv.InvoiceNumber)), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	var billTo []string
	if c := inv.Client; c != nil {
		billTo = []string{c.Name, c.CompanyName, c.Address, cityLine(c.City, c.State, c.PostalCode), c.Country, c.Email}
	}
	meta := []string{
		"Issued: " + inv.IssueDate.Format("02 Jan 2006"),
		"Due: " + inv.DueDate.Format("02 Jan 2006"),
		"Status: " + string(inv.Status),
	}
	rows := len(billTo)
	if len(meta) > rows {
		rows = len(meta)
	}
	for i := 0; i < rows; i++ {
		left, right := "", ""
		if i < len(billTo) {
			left = billTo[i]
		}
		if i < len(meta) {
			right = meta[i]
		}
		pdf.CellFormat(90, 5, tr(left), "", 0, "L", false, 0, "")
		pdf.CellFormat(90, 5, right, "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	// Items table
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(85, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(25, 7, "Rate", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 7, "Tax", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, it := range inv.Items {
		pdf.CellFormat(85, 6, tr(truncate(it.Description, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, it.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, it.Rate.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, it.TaxAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, it.LineTotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// Totals
	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"Subtotal", inv.Subtotal},
		{"Tax", inv.TaxAmount},
		{"Shipping", inv.Shipping},
		{"Total", inv.Total},
		{"Paid", inv.AmountPaid},
	}
	for _, t := range totals {
		pdf.CellFormat(130, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money(t.value, cur), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(130, 8, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Due", "T", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, money(inv.Balance(), cur), "T", 1, "R", false, 0, "")

	// Payment instructions and notes
	pdf.SetFont("Arial", "", 9)
	if inv.PaymentMethod.AllowsETransfer() && b.AcceptETransfer && b.PaymentInstructions != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(180, 6, "Payment instructions", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(180, 5, tr(b.PaymentInstructions), "", "L", false)
	}
	if inv.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(180, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(180, 5, tr(inv.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func cityLine(city, state, postal string) string {
	out := city
	if state != "" {
		if out != "" {
			out += ", "
		}
		out += state
	}
	if postal != "" {
		if out != "" {
			out += " "
		}
		out += postal
	}
	return out
}
