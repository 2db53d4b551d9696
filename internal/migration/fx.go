package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicekit/internal/clock"
	"github.com/smallbiznis/invoicekit/internal/config"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/ratelimit"
	"github.com/smallbiznis/invoicekit/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedParams struct {
	fx.In

	DB     *gorm.DB
	Cfg    config.Config
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   invoicedomain.Repository `optional:"true"`
	Locker *ratelimit.Locker        `optional:"true"`
}

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		return Run(conn, cfg.DBType)
	}),
	fx.Invoke(func(p seedParams) error {
		if !p.Cfg.SeedDemoData {
			return nil
		}
		return seed.EnsureDemoInvoice(context.Background(), p.DB, seed.Options{
			Repo:   p.Repo,
			GenID:  p.GenID,
			Clock:  p.Clock,
			Locker: p.Locker,
			Log:    p.Log,
		})
	}),
)
