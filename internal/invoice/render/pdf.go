// Package render produces printable representations of invoices.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
)

const dateLayout = "2006-01-02"

// Renderer turns an invoice into a PDF document.
type Renderer interface {
	RenderPDF(ctx context.Context, invoice domain.Invoice) ([]byte, error)
}

type PDFRenderer struct {
	issuer string
}

// NewRenderer builds a maroto backed renderer. issuer is printed in the
// document header.
func NewRenderer(issuer string) Renderer {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = "invoicekit"
	}
	return &PDFRenderer{issuer: issuer}
}

func (r *PDFRenderer) RenderPDF(ctx context.Context, invoice domain.Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, r.issuer, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date: "+invoice.DateValue().Format(dateLayout), props.Text{Top: 5}),
			text.New("Status: "+string(invoice.Status), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(invoice.CustomerName, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range invoice.LineItems {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice.StringFixed(domain.MoneyPlaces), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.LineTotal.StringFixed(domain.MoneyPlaces), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, invoice.TotalAmount.StringFixed(domain.MoneyPlaces), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if invoice.TotalRule == domain.TotalRuleHalved {
		m.AddRow(8,
			text.NewCol(12, "Total computed as half of the line totals.", props.Text{Size: 7, Style: fontstyle.Italic}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

// Filename returns the download name of an invoice document.
func Filename(invoice domain.Invoice) string {
	name := slug.Make(invoice.InvoiceNumber)
	if name == "" {
		name = invoice.ID.String()
	}
	return "invoice-" + name + ".pdf"
}
