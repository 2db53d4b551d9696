package repository

import (
	"context"

	"github.com/smallbiznis/invoicekit/pkg/db/option"
)

// Repository is a generic gorm-backed store for a single model type. Build
// one per handle; inside a transaction pass the tx to ProvideStore.
type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	Update(ctx context.Context, resourceID any, fields map[string]any) (int64, error)
	Delete(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
