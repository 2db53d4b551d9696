package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicekit/pkg/db/option"
	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	Status        InvoiceStatus
	InvoiceNumber string
	CustomerName  string
	DateAfter     *time.Time
	DateBefore    *time.Time
	SearchTerms   []string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateHeader(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	NumberTaken(ctx context.Context, db *gorm.DB, number string, excludeID snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, orders []option.OrderBy, page pagination.Pagination) ([]*Invoice, int64, error)
	Delete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)

	InsertLineItems(ctx context.Context, db *gorm.DB, items []*LineItem) error
	UpdateLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
	DeleteLineItemsExcept(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, keep []snowflake.ID) (int64, error)
}
