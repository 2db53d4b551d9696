package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/repository"
	obscontext "github.com/smallbiznis/invoicekit/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var errWriteFailed = errors.New("write failed")

// faultyRepo wraps the gorm repository and fails selected writes.
type faultyRepo struct {
	domain.Repository
	failInsertItems bool
	failUpdateItem  bool
	skipNumberCheck bool
}

func (r *faultyRepo) InsertLineItems(ctx context.Context, db *gorm.DB, items []*domain.LineItem) error {
	if r.failInsertItems {
		return errWriteFailed
	}
	return r.Repository.InsertLineItems(ctx, db, items)
}

func (r *faultyRepo) UpdateLineItem(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	if r.failUpdateItem {
		return errWriteFailed
	}
	return r.Repository.UpdateLineItem(ctx, db, item)
}

func (r *faultyRepo) NumberTaken(ctx context.Context, db *gorm.DB, number string, excludeID snowflake.ID) (bool, error) {
	if r.skipNumberCheck {
		return false, nil
	}
	return r.Repository.NumberTaken(ctx, db, number, excludeID)
}

func (e *testEnv) serviceWith(repo domain.Repository, log *zap.Logger) domain.Service {
	return New(Params{
		DB:       e.db,
		Log:      log,
		GenID:    e.node,
		Clock:    e.clock,
		Repo:     repo,
		Settings: domain.StaticSettings(domain.DefaultSettings()),
	})
}

func (e *testEnv) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(model).Count(&count).Error)
	return count
}

func TestCreateRollsBackWhenLineItemsFail(t *testing.T) {
	env := newTestEnv(t)
	svc := env.serviceWith(&faultyRepo{Repository: repository.Provide(), failInsertItems: true}, zap.NewNop())

	_, err := svc.Create(context.Background(), inv001())
	require.ErrorIs(t, err, errWriteFailed)

	assert.Zero(t, env.countRows(t, &domain.Invoice{}))
	assert.Zero(t, env.countRows(t, &domain.LineItem{}))
}

func TestUpdateRollsBackOnLineItemFailure(t *testing.T) {
	tests := []struct {
		name string
		repo *faultyRepo
	}{
		{name: "update existing item fails", repo: &faultyRepo{failUpdateItem: true}},
		{name: "insert new item fails", repo: &faultyRepo{failInsertItems: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			created, err := env.service(domain.DefaultSettings()).Create(ctx, inv001())
			require.NoError(t, err)

			tt.repo.Repository = repository.Provide()
			svc := env.serviceWith(tt.repo, zap.NewNop())

			req := updateRequest(created,
				domain.LineItemInput{ID: ptr(created.LineItems[0].ID.String()), Description: "Changed", Quantity: 9, UnitPrice: money("9.00")},
				domain.LineItemInput{Description: "New line", Quantity: 1, UnitPrice: money("1.00")},
			)
			req.InvoiceNumber = "INV999"
			req.CustomerName = "Renamed Ltd"

			_, err = svc.Update(ctx, req)
			require.ErrorIs(t, err, errWriteFailed)

			reloaded, err := env.service(domain.DefaultSettings()).GetByID(ctx, created.ID.String())
			require.NoError(t, err)
			assert.Equal(t, "INV001", reloaded.InvoiceNumber)
			assert.Equal(t, "Acme Corporation", reloaded.CustomerName)
			assert.Equal(t, created.DateValue(), reloaded.DateValue())
			require.Len(t, reloaded.LineItems, 2)
			assert.Equal(t, "Consulting hours", reloaded.LineItems[0].Description)
			assert.Equal(t, "100.00", reloaded.LineItems[0].LineTotal.StringFixed(2))
			assert.Equal(t, "175.00", reloaded.TotalAmount.StringFixed(2))
		})
	}
}

func TestCreateMapsUniqueIndexViolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.serviceWith(&faultyRepo{Repository: repository.Provide(), skipNumberCheck: true}, zap.NewNop())

	_, err := svc.Create(ctx, inv001())
	require.NoError(t, err)

	_, err = svc.Create(ctx, inv001())
	var uerr *domain.UniquenessError
	require.True(t, errors.As(err, &uerr), "expected uniqueness error, got %v", err)
	assert.Equal(t, "invoice_number", uerr.Field)

	assert.Equal(t, int64(1), env.countRows(t, &domain.Invoice{}))
	assert.Equal(t, int64(2), env.countRows(t, &domain.LineItem{}))
}

func TestUpdateMapsUniqueIndexViolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.serviceWith(&faultyRepo{Repository: repository.Provide(), skipNumberCheck: true}, zap.NewNop())

	_, err := svc.Create(ctx, inv001())
	require.NoError(t, err)
	other := createInvoice(t, svc, "INV002", "Globex", day(2024, 1, 20), "")

	req := updateRequest(other, domain.LineItemInput{Description: "Item", Quantity: 1, UnitPrice: money("10.00")})
	req.InvoiceNumber = "INV001"
	_, err = svc.Update(ctx, req)
	var uerr *domain.UniquenessError
	require.True(t, errors.As(err, &uerr), "expected uniqueness error, got %v", err)

	reloaded, err := svc.GetByID(ctx, other.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "INV002", reloaded.InvoiceNumber)
	assert.Len(t, reloaded.LineItems, 1)
}

func TestConcurrentCreatesKeepNumberUnique(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(domain.DefaultSettings())
	ctx := context.Background()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, inv001())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var uerr *domain.UniquenessError
		assert.True(t, errors.As(err, &uerr), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), env.countRows(t, &domain.Invoice{}))
	assert.Equal(t, int64(2), env.countRows(t, &domain.LineItem{}))
}

func TestServiceLogsCarryRequestID(t *testing.T) {
	env := newTestEnv(t)
	core, logs := observer.New(zapcore.InfoLevel)
	svc := env.serviceWith(repository.Provide(), zap.New(core))
	ctx := obscontext.WithRequestID(context.Background(), "req-42")

	created, err := svc.Create(ctx, inv001())
	require.NoError(t, err)
	_, err = svc.Update(ctx, updateRequest(created, domain.LineItemInput{Description: "Item", Quantity: 1, UnitPrice: money("1.00")}))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID.String()))
	_, err = svc.BatchDelete(ctx, []string{"123"})
	require.NoError(t, err)

	for _, msg := range []string{"invoice created", "invoice updated", "invoice deleted", "invoices batch deleted"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"], msg)
	}
}
