package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/pkg/db/option"
	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
	"github.com/smallbiznis/invoicekit/pkg/repository"
	"gorm.io/gorm"
)

var sortableColumns = map[string]bool{
	"date":           true,
	"customer_name":  true,
	"invoice_number": true,
}

var defaultOrdering = []option.OrderBy{{Field: "date"}}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert writes the header only; line items go through InsertLineItems.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return repository.ProvideStore[domain.Invoice](db).Create(ctx, invoice)
}

func (r *repo) UpdateHeader(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"invoice_number": invoice.InvoiceNumber,
			"customer_name":  invoice.CustomerName,
			"date":           invoice.Date,
			"status":         invoice.Status,
			"updated_at":     invoice.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return repository.ProvideStore[domain.Invoice](db).FindOne(ctx, nil,
		option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
			return db.Preload("LineItems", orderLineItems)
		}),
		option.ApplyOperator(option.Condition{Field: "id", Operator: option.EQ, Value: id}),
	)
}

func (r *repo) NumberTaken(ctx context.Context, db *gorm.DB, number string, excludeID snowflake.ID) (bool, error) {
	opts := []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: "invoice_number", Operator: option.EQ, Value: number}),
	}
	if excludeID != 0 {
		opts = append(opts, option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
			return db.Where("id <> ?", excludeID)
		}))
	}
	count, err := repository.ProvideStore[domain.Invoice](db).Count(ctx, nil, opts...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, orders []option.OrderBy, page pagination.Pagination) ([]*domain.Invoice, int64, error) {
	filters := filterOptions(filter)

	store := repository.ProvideStore[domain.Invoice](db)
	count, err := store.Count(ctx, nil, filters...)
	if err != nil {
		return nil, 0, err
	}

	opts := append(filters,
		option.WithSortBy(option.QuerySortBy{
			Allow:   sortableColumns,
			Default: defaultOrdering,
			Orders:  orders,
		}),
		option.ApplyPagination(page),
		option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
			return db.Preload("LineItems", orderLineItems)
		}),
	)

	invoices, err := store.Find(ctx, nil, opts...)
	if err != nil {
		return nil, 0, err
	}
	return invoices, count, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// Line items go first so the cascade does not depend on the engine
	// enforcing foreign keys.
	items := repository.ProvideStore[domain.LineItem](db)
	if _, err := items.Delete(ctx, nil, option.ApplyOperator(option.Condition{
		Field:    "invoice_id",
		Operator: option.In,
		Value:    ids,
	})); err != nil {
		return 0, err
	}

	invoices := repository.ProvideStore[domain.Invoice](db)
	return invoices.Delete(ctx, nil, option.ApplyOperator(option.Condition{
		Field:    "id",
		Operator: option.In,
		Value:    ids,
	}))
}

func (r *repo) InsertLineItems(ctx context.Context, db *gorm.DB, items []*domain.LineItem) error {
	return repository.ProvideStore[domain.LineItem](db).BatchCreate(ctx, items)
}

func (r *repo) UpdateLineItem(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	affected, err := repository.ProvideStore[domain.LineItem](db).Update(ctx, item.ID, map[string]any{
		"description": item.Description,
		"quantity":    item.Quantity,
		"unit_price":  item.UnitPrice,
		"line_total":  item.LineTotal,
		"updated_at":  item.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteLineItemsExcept(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, keep []snowflake.ID) (int64, error) {
	opts := []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: "invoice_id", Operator: option.EQ, Value: invoiceID}),
	}
	if len(keep) > 0 {
		opts = append(opts, option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
			return db.Where("id NOT IN ?", keep)
		}))
	}
	return repository.ProvideStore[domain.LineItem](db).Delete(ctx, nil, opts...)
}

func filterOptions(filter domain.ListInvoiceFilter) []option.QueryOption {
	opts := []option.QueryOption{}
	if filter.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "status",
			Operator: option.EQ,
			Value:    filter.Status,
		}))
	}
	if filter.InvoiceNumber != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "invoice_number",
			Operator: option.IContains,
			Value:    filter.InvoiceNumber,
		}))
	}
	if filter.CustomerName != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "customer_name",
			Operator: option.IContains,
			Value:    filter.CustomerName,
		}))
	}
	if filter.DateAfter != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "date",
			Operator: option.GTE,
			Value:    *filter.DateAfter,
		}))
	}
	if filter.DateBefore != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "date",
			Operator: option.LTE,
			Value:    *filter.DateBefore,
		}))
	}
	for _, term := range filter.SearchTerms {
		opts = append(opts, option.AnyOf(
			option.Condition{Field: "customer_name", Operator: option.IContains, Value: term},
			option.Condition{Field: "invoice_number", Operator: option.IContains, Value: term},
		))
	}
	return opts
}

func orderLineItems(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}
