// Package seed inserts demonstration data for local environments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicekit/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/repository"
	"github.com/smallbiznis/invoicekit/internal/ratelimit"
	store "github.com/smallbiznis/invoicekit/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoInvoiceNumber = "INV001"
	demoCustomerName  = "Acme Corporation"
	seedLockKey       = "invoicekit:seed:lock"
	seedLockTTL       = 30 * time.Second
)

type Options struct {
	Repo   invoicedomain.Repository
	GenID  *snowflake.Node
	Clock  clock.Clock
	Locker *ratelimit.Locker
	Log    *zap.Logger
}

type demoLine struct {
	description string
	quantity    int64
	unitPrice   string
}

var demoLines = []demoLine{
	{description: "Consulting hours", quantity: 2, unitPrice: "50.00"},
	{description: "Support plan", quantity: 3, unitPrice: "25.00"},
}

// EnsureDemoInvoice inserts INV001 with two line items (100.00 and 75.00)
// when the invoices table is empty. Running it again is a no-op.
func EnsureDemoInvoice(ctx context.Context, db *gorm.DB, opts Options) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if opts.GenID == nil {
		node, err := snowflake.NewNode(1)
		if err != nil {
			return err
		}
		opts.GenID = node
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Repo == nil {
		opts.Repo = repository.Provide()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	if opts.Locker != nil {
		lease, err := opts.Locker.Acquire(ctx, seedLockKey, seedLockTTL)
		switch {
		case errors.Is(err, ratelimit.ErrLockHeld):
			log.Info("another instance is seeding, skipping")
			return nil
		case err != nil:
			log.Warn("seed lock unavailable, seeding without it", zap.Error(err))
		default:
			defer func() {
				_ = lease.Release(context.WithoutCancel(ctx))
			}()
		}
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := store.ProvideStore[invoicedomain.Invoice](tx).Count(ctx, nil)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := opts.Clock.Now()
		invoice := invoicedomain.Invoice{
			ID:            opts.GenID.Generate(),
			InvoiceNumber: demoInvoiceNumber,
			CustomerName:  demoCustomerName,
			Date:          datatypes.Date(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)),
			Status:        invoicedomain.InvoiceStatusDraft,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := opts.Repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}

		items := make([]*invoicedomain.LineItem, 0, len(demoLines))
		for _, line := range demoLines {
			price := decimal.RequireFromString(line.unitPrice)
			items = append(items, &invoicedomain.LineItem{
				ID:          opts.GenID.Generate(),
				InvoiceID:   invoice.ID,
				Description: line.description,
				Quantity:    line.quantity,
				UnitPrice:   price,
				LineTotal:   invoicedomain.LineTotal(line.quantity, price),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if err := opts.Repo.InsertLineItems(ctx, tx, items); err != nil {
			return err
		}

		log.Info("demo invoice seeded", zap.String("invoice_number", demoInvoiceNumber))
		return nil
	})
}
