package seed

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicekit/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:seed_"+t.Name()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.LineItem{}))
	return db
}

func TestEnsureDemoInvoiceIsIdempotent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	opts := Options{Clock: clock.NewFakeClock(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))}

	require.NoError(t, EnsureDemoInvoice(ctx, db, opts))
	require.NoError(t, EnsureDemoInvoice(ctx, db, opts))

	var invoices []invoicedomain.Invoice
	require.NoError(t, db.Preload("LineItems").Find(&invoices).Error)
	require.Len(t, invoices, 1)

	inv := invoices[0]
	assert.Equal(t, "INV001", inv.InvoiceNumber)
	assert.Equal(t, "2024-01-15", inv.DateValue().Format("2006-01-02"))
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, "175.00", invoicedomain.TotalAmount(inv.LineItems, invoicedomain.TotalRuleSum).StringFixed(2))
	assert.Equal(t, "87.50", invoicedomain.TotalAmount(inv.LineItems, invoicedomain.TotalRuleHalved).StringFixed(2))
}

type countingRepo struct {
	invoicedomain.Repository
	headers int
	items   int
}

func (r *countingRepo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	r.headers++
	return r.Repository.Insert(ctx, db, invoice)
}

func (r *countingRepo) InsertLineItems(ctx context.Context, db *gorm.DB, items []*invoicedomain.LineItem) error {
	r.items += len(items)
	return r.Repository.InsertLineItems(ctx, db, items)
}

func TestEnsureDemoInvoiceWritesThroughRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := &countingRepo{Repository: repository.Provide()}

	require.NoError(t, EnsureDemoInvoice(ctx, db, Options{Repo: repo}))
	require.NoError(t, EnsureDemoInvoice(ctx, db, Options{Repo: repo}))

	assert.Equal(t, 1, repo.headers)
	assert.Equal(t, 2, repo.items)
}

func TestEnsureDemoInvoiceRequiresDB(t *testing.T) {
	assert.Error(t, EnsureDemoInvoice(context.Background(), nil, Options{}))
}
