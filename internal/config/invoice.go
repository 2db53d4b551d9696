package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
)

// InvoiceConfig is the file-backed invoice policy configuration.
type InvoiceConfig struct {
	TotalRule            string `mapstructure:"total_rule"`
	ReconciliationPolicy string `mapstructure:"reconciliation_policy"`
	AmountDueFilter      string `mapstructure:"amount_due_filter"`
	DefaultPageSize      int    `mapstructure:"default_page_size"`
	MaxPageSize          int    `mapstructure:"max_page_size"`
}

func DefaultInvoiceConfig() InvoiceConfig {
	defaults := invoicedomain.DefaultSettings()
	return InvoiceConfig{
		TotalRule:            string(defaults.TotalRule),
		ReconciliationPolicy: string(defaults.Reconciliation),
		AmountDueFilter:      string(defaults.AmountDueFilter),
		DefaultPageSize:      defaults.DefaultPageSize,
		MaxPageSize:          defaults.MaxPageSize,
	}
}

// Settings converts the file representation into service settings.
func (c InvoiceConfig) Settings() invoicedomain.Settings {
	return invoicedomain.NormalizeSettings(invoicedomain.Settings{
		TotalRule:       invoicedomain.TotalRule(c.TotalRule),
		Reconciliation:  invoicedomain.ReconciliationPolicy(c.ReconciliationPolicy),
		AmountDueFilter: invoicedomain.AmountDueFilterPolicy(c.AmountDueFilter),
		DefaultPageSize: c.DefaultPageSize,
		MaxPageSize:     c.MaxPageSize,
	})
}

type InvoiceConfigHolder struct {
	current atomic.Value // holds invoicedomain.Settings
}

// NewInvoiceConfigHolder reads invoice.yml from the usual config paths,
// applies INVOICEKIT_* env overrides and watches the file for changes.
func NewInvoiceConfigHolder() (*InvoiceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("invoice")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/invoicekit")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setInvoiceDefaults(v)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	settings, err := decodeInvoiceSettings(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticInvoiceConfigHolder(settings)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeInvoiceSettings(v)
			if err != nil {
				log.Printf("[invoice-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[invoice-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticInvoiceConfigHolder wraps fixed settings, used when no file is watched.
func NewStaticInvoiceConfigHolder(settings invoicedomain.Settings) *InvoiceConfigHolder {
	holder := &InvoiceConfigHolder{}
	holder.current.Store(settings)
	return holder
}

func (h *InvoiceConfigHolder) Settings() invoicedomain.Settings {
	return h.current.Load().(invoicedomain.Settings)
}

func setInvoiceDefaults(v *viper.Viper) {
	defaults := DefaultInvoiceConfig()
	v.SetDefault("invoice.total_rule", defaults.TotalRule)
	v.SetDefault("invoice.reconciliation_policy", defaults.ReconciliationPolicy)
	v.SetDefault("invoice.amount_due_filter", defaults.AmountDueFilter)
	v.SetDefault("invoice.default_page_size", defaults.DefaultPageSize)
	v.SetDefault("invoice.max_page_size", defaults.MaxPageSize)
}

// decodeInvoiceSettings reads key by key so INVOICEKIT_INVOICE_* env
// overrides apply; viper ignores them when unmarshalling a parent key.
func decodeInvoiceSettings(v *viper.Viper) (invoicedomain.Settings, error) {
	cfg := InvoiceConfig{
		TotalRule:            v.GetString("invoice.total_rule"),
		ReconciliationPolicy: v.GetString("invoice.reconciliation_policy"),
		AmountDueFilter:      v.GetString("invoice.amount_due_filter"),
		DefaultPageSize:      v.GetInt("invoice.default_page_size"),
		MaxPageSize:          v.GetInt("invoice.max_page_size"),
	}
	settings := cfg.Settings()
	if err := settings.Validate(); err != nil {
		return invoicedomain.Settings{}, err
	}
	return settings, nil
}
