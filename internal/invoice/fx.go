package invoice

import (
	"github.com/smallbiznis/invoicekit/internal/config"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/render"
	"github.com/smallbiznis/invoicekit/internal/invoice/repository"
	"github.com/smallbiznis/invoicekit/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideSettings),
	fx.Provide(provideRenderer),
	fx.Provide(service.New),
)

func provideSettings(holder *config.InvoiceConfigHolder) domain.SettingsSource {
	return holder
}

func provideRenderer(cfg config.Config) render.Renderer {
	return render.NewRenderer(cfg.AppName)
}
