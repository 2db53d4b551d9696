package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func lineItems(totals ...string) []LineItem {
	items := make([]LineItem, 0, len(totals))
	for _, total := range totals {
		items = append(items, LineItem{LineTotal: decimal.RequireFromString(total)})
	}
	return items
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "100.00", LineTotal(2, decimal.RequireFromString("50.00")).StringFixed(MoneyPlaces))
	assert.Equal(t, "75.00", LineTotal(3, decimal.RequireFromString("25")).StringFixed(MoneyPlaces))
	assert.Equal(t, "0.30", LineTotal(3, decimal.RequireFromString("0.10")).StringFixed(MoneyPlaces))
}

func TestTotalAmount(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		rule  TotalRule
		want  string
	}{
		{name: "sum", items: lineItems("100.00", "75.00"), rule: TotalRuleSum, want: "175.00"},
		{name: "halved", items: lineItems("100.00", "75.00"), rule: TotalRuleHalved, want: "87.50"},
		{name: "empty under sum", rule: TotalRuleSum, want: "0.00"},
		{name: "empty under halved", rule: TotalRuleHalved, want: "0.00"},
		{name: "halved rounds", items: lineItems("0.01"), rule: TotalRuleHalved, want: "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalAmount(tt.items, tt.rule).StringFixed(MoneyPlaces))
		})
	}
}

func TestFitsMoney(t *testing.T) {
	assert.True(t, FitsMoney(decimal.RequireFromString("99999999.99")))
	assert.False(t, FitsMoney(decimal.RequireFromString("100000000")))
	assert.False(t, FitsMoney(decimal.RequireFromString("-100000000.00")))
}

func TestHasAtMostPlaces(t *testing.T) {
	assert.True(t, HasAtMostPlaces(decimal.RequireFromString("10.5"), 2))
	assert.True(t, HasAtMostPlaces(decimal.RequireFromString("10.500"), 2))
	assert.False(t, HasAtMostPlaces(decimal.RequireFromString("10.505"), 2))
}
