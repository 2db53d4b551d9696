package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicekit/pkg/db/option"
	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   int64 `gorm:"primaryKey;autoIncrement:false"`
	Name string
	Kind string
}

func setupStore(t *testing.T) (*gorm.DB, Repository[widget]) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))
	return db, ProvideStore[widget](db)
}

func TestStoreCRUD(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &widget{ID: 1, Name: "Alpha", Kind: "a"}))
	require.NoError(t, store.BatchCreate(ctx, []*widget{
		{ID: 2, Name: "beta", Kind: "b"},
		{ID: 3, Name: "Gamma", Kind: "a"},
	}))
	require.NoError(t, store.BatchCreate(ctx, nil))

	count, err := store.Count(ctx, &widget{Kind: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	found, err := store.FindOne(ctx, &widget{ID: 2})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "beta", found.Name)

	missing, err := store.FindOne(ctx, &widget{ID: 99})
	require.NoError(t, err)
	assert.Nil(t, missing)

	affected, err := store.Update(ctx, int64(3), map[string]any{"name": "Delta"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	deleted, err := store.Delete(ctx, nil, option.ApplyOperator(option.Condition{
		Field:    "id",
		Operator: option.In,
		Value:    []int64{1, 3, 42},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestStoreFindWithOptions(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.BatchCreate(ctx, []*widget{
		{ID: 1, Name: "Alpha", Kind: "a"},
		{ID: 2, Name: "alphabet", Kind: "b"},
		{ID: 3, Name: "Gamma", Kind: "a"},
		{ID: 4, Name: "Beta", Kind: "c"},
	}))

	items, err := store.Find(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "name", Operator: option.IContains, Value: "ALPHA"}),
		option.WithSortBy(option.QuerySortBy{
			Allow:   map[string]bool{"name": true},
			Default: []option.OrderBy{{Field: "name"}},
			Orders:  option.ParseOrdering("-name"),
		}),
	)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ID)

	items, err = store.Find(ctx, nil,
		option.AnyOf(
			option.Condition{Field: "kind", Operator: option.EQ, Value: "c"},
			option.Condition{Field: "name", Operator: option.IContains, Value: "gam"},
		),
		option.WithSortBy(option.QuerySortBy{Default: []option.OrderBy{{Field: "id"}}}),
	)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Equal(t, int64(4), items[1].ID)

	items, err = store.Find(ctx, nil,
		option.WithSortBy(option.QuerySortBy{Default: []option.OrderBy{{Field: "id", Desc: true}}}),
		option.ApplyPagination(pagination.Pagination{Limit: 2, Offset: 1}),
	)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Equal(t, int64(2), items[1].ID)
}

func TestStoreInsideTransactionRollsBack(t *testing.T) {
	db, store := setupStore(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ProvideStore[widget](tx).Create(ctx, &widget{ID: 7, Name: "tx"}); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)

	count, err := store.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}
