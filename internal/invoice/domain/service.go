package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
)

// LineItemInput is a submitted line item. ID is only honoured on update.
type LineItemInput struct {
	ID          *string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

type CreateInvoiceRequest struct {
	InvoiceNumber string
	CustomerName  string
	Date          *time.Time
	Status        string
	LineItems     []LineItemInput
}

type UpdateInvoiceRequest struct {
	ID            string
	InvoiceNumber string
	CustomerName  string
	Date          *time.Time
	Status        string
	LineItems     []LineItemInput
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status        string
	InvoiceNumber string
	CustomerName  string
	DateAfter     *time.Time
	DateBefore    *time.Time
	AmountDue     *decimal.Decimal
	Search        string
	Ordering      string
}

type ListInvoiceResponse struct {
	Count    int64
	Page     pagination.Pagination
	Invoices []Invoice
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	Update(context.Context, UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, id string) error
	BatchDelete(ctx context.Context, ids []string) (int64, error)
}
