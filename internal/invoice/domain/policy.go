package domain

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
)

// TotalRule selects how an invoice total is derived from its line totals.
type TotalRule string

const (
	// TotalRuleSum adds up the line totals.
	TotalRuleSum TotalRule = "sum"
	// TotalRuleHalved halves the sum when at least one line exists. It keeps
	// totals compatible with data produced by the legacy service, which
	// persisted every line twice on create.
	TotalRuleHalved TotalRule = "halved"
)

// ReconciliationPolicy selects what an update does with persisted line items
// that are absent from the submitted list.
type ReconciliationPolicy string

const (
	// ReconcileMergeOnly keeps absent line items untouched.
	ReconcileMergeOnly ReconciliationPolicy = "merge_only"
	// ReconcileReplaceAll deletes absent line items.
	ReconcileReplaceAll ReconciliationPolicy = "replace_all"
)

// AmountDueFilterPolicy decides what the list endpoint does with an
// amount_due filter. No stored or derived field backs it.
type AmountDueFilterPolicy string

const (
	AmountDueFilterReject AmountDueFilterPolicy = "reject"
	AmountDueFilterIgnore AmountDueFilterPolicy = "ignore"
)

// Settings are the runtime knobs of the invoice service.
type Settings struct {
	TotalRule       TotalRule
	Reconciliation  ReconciliationPolicy
	AmountDueFilter AmountDueFilterPolicy
	DefaultPageSize int
	MaxPageSize     int
}

// SettingsSource yields the settings in force for a single call.
type SettingsSource interface {
	Settings() Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

func (s StaticSettings) Settings() Settings { return Settings(s) }

func DefaultSettings() Settings {
	return Settings{
		TotalRule:       TotalRuleSum,
		Reconciliation:  ReconcileMergeOnly,
		AmountDueFilter: AmountDueFilterReject,
		DefaultPageSize: pagination.DefaultLimit,
		MaxPageSize:     pagination.MaxLimit,
	}
}

func (s Settings) Validate() error {
	switch s.TotalRule {
	case TotalRuleSum, TotalRuleHalved:
	default:
		return fmt.Errorf("unknown total rule %q", s.TotalRule)
	}
	switch s.Reconciliation {
	case ReconcileMergeOnly, ReconcileReplaceAll:
	default:
		return fmt.Errorf("unknown reconciliation policy %q", s.Reconciliation)
	}
	switch s.AmountDueFilter {
	case AmountDueFilterReject, AmountDueFilterIgnore:
	default:
		return fmt.Errorf("unknown amount_due filter policy %q", s.AmountDueFilter)
	}
	if s.DefaultPageSize <= 0 || s.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if s.DefaultPageSize > s.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", s.DefaultPageSize, s.MaxPageSize)
	}
	return nil
}

// NormalizeSettings lower-cases and trims the enumerated values.
func NormalizeSettings(s Settings) Settings {
	s.TotalRule = TotalRule(strings.ToLower(strings.TrimSpace(string(s.TotalRule))))
	s.Reconciliation = ReconciliationPolicy(strings.ToLower(strings.TrimSpace(string(s.Reconciliation))))
	s.AmountDueFilter = AmountDueFilterPolicy(strings.ToLower(strings.TrimSpace(string(s.AmountDueFilter))))
	return s
}
