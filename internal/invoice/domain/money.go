package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of fractional digits stored for every amount.
const MoneyPlaces int32 = 2

var (
	// MinUnitPrice is the smallest accepted unit price.
	MinUnitPrice = decimal.New(1, -MoneyPlaces)
	// MoneyLimit is the exclusive upper bound of a decimal(10,2) column.
	MoneyLimit = decimal.New(1, 8)
)

// LineTotal returns quantity × unitPrice using exact decimal arithmetic,
// represented with two fractional digits.
func LineTotal(quantity int64, unitPrice decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(quantity).Mul(unitPrice).Round(MoneyPlaces)
}

// TotalAmount aggregates the line totals of items under rule. An invoice
// without items totals 0.00 whatever the rule.
func TotalAmount(items []LineItem, rule TotalRule) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero.Round(MoneyPlaces)
	}

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}

	if rule == TotalRuleHalved {
		sum = sum.Div(decimal.NewFromInt(2))
	}

	return sum.Round(MoneyPlaces)
}

// FitsMoney reports whether d can be stored in a decimal(10,2) column.
func FitsMoney(d decimal.Decimal) bool {
	return d.Abs().LessThan(MoneyLimit)
}

// HasAtMostPlaces reports whether d carries no significant digits beyond places.
func HasAtMostPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}
