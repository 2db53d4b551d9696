package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func sampleInvoice() domain.Invoice {
	items := []domain.LineItem{
		{ID: 11, Description: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00"), LineTotal: decimal.RequireFromString("100.00")},
		{ID: 12, Description: "Gadget", Quantity: 3, UnitPrice: decimal.RequireFromString("25.00"), LineTotal: decimal.RequireFromString("75.00")},
	}
	return domain.Invoice{
		ID:            10,
		InvoiceNumber: "INV001",
		CustomerName:  "Acme",
		Date:          datatypes.Date(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		Status:        domain.InvoiceStatusDraft,
		LineItems:     items,
		TotalAmount:   domain.TotalAmount(items, domain.TotalRuleSum),
		TotalRule:     domain.TotalRuleSum,
	}
}

func TestRenderPDF(t *testing.T) {
	r := NewRenderer("Acme Billing")

	doc, err := r.RenderPDF(context.Background(), sampleInvoice())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestRenderPDFHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRenderer("").RenderPDF(ctx, sampleInvoice())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilename(t *testing.T) {
	inv := sampleInvoice()
	assert.Equal(t, "invoice-inv001.pdf", Filename(inv))

	inv.InvoiceNumber = "INV 2024/01"
	assert.Equal(t, "invoice-inv-2024-01.pdf", Filename(inv))

	inv.InvoiceNumber = "///"
	assert.Equal(t, "invoice-10.pdf", Filename(inv))
}
