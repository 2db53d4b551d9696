package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
)

type headerInput struct {
	number   string
	customer string
	date     time.Time
	status   domain.InvoiceStatus
}

type lineInput struct {
	id          *snowflake.ID
	description string
	quantity    int64
	unitPrice   decimal.Decimal
	lineTotal   decimal.Decimal
}

// validateHeader checks the invoice header fields. An empty status resolves
// to fallback.
func validateHeader(verr *domain.ValidationError, number, customer string, date *time.Time, rawStatus string, fallback domain.InvoiceStatus) headerInput {
	out := headerInput{
		number:   strings.TrimSpace(number),
		customer: strings.TrimSpace(customer),
		status:   fallback,
	}

	switch {
	case out.number == "":
		verr.Add("invoice_number", domain.CodeRequired, "invoice_number is required")
	case utf8.RuneCountInString(out.number) > domain.MaxInvoiceNumberLength:
		verr.Add("invoice_number", domain.CodeMaxLength, "invoice_number must be at most 20 characters")
	}

	switch {
	case out.customer == "":
		verr.Add("customer_name", domain.CodeRequired, "customer_name is required")
	case utf8.RuneCountInString(out.customer) > domain.MaxCustomerNameLength:
		verr.Add("customer_name", domain.CodeMaxLength, "customer_name must be at most 100 characters")
	}

	if date == nil || date.IsZero() {
		verr.Add("date", domain.CodeRequired, "date is required")
	} else {
		out.date = calendarDate(*date)
	}

	if raw := strings.TrimSpace(rawStatus); raw != "" {
		status, ok := domain.ParseInvoiceStatus(raw)
		if !ok {
			verr.Add("status", domain.CodeInvalidChoice, invalidStatusMessage(raw))
		} else {
			out.status = status
		}
	}

	return out
}

func validateLineItems(verr *domain.ValidationError, items []domain.LineItemInput, allowID bool) []lineInput {
	if len(items) == 0 {
		verr.Add("details", domain.CodeRequired, "at least one line item is required")
		return nil
	}

	out := make([]lineInput, 0, len(items))
	for i, item := range items {
		line := lineInput{
			description: strings.TrimSpace(item.Description),
			quantity:    item.Quantity,
			unitPrice:   item.UnitPrice,
		}

		if allowID && item.ID != nil && strings.TrimSpace(*item.ID) != "" {
			id, err := parseID(*item.ID)
			if err != nil {
				verr.Add(domain.LineItemField(i, "id"), domain.CodeInvalid, "invalid line item id")
			} else {
				line.id = &id
			}
		}

		switch {
		case line.description == "":
			verr.Add(domain.LineItemField(i, "description"), domain.CodeRequired, "description is required")
		case utf8.RuneCountInString(line.description) > domain.MaxDescriptionLength:
			verr.Add(domain.LineItemField(i, "description"), domain.CodeMaxLength, "description must be at most 255 characters")
		}

		quantityOK := true
		switch {
		case item.Quantity < 1:
			verr.Add(domain.LineItemField(i, "quantity"), domain.CodeMinValue, "quantity must be at least 1")
			quantityOK = false
		case item.Quantity > domain.MaxQuantity:
			verr.Add(domain.LineItemField(i, "quantity"), domain.CodeMaxValue, "quantity must be at most 2147483647")
			quantityOK = false
		}

		priceOK := true
		switch {
		case item.UnitPrice.LessThan(domain.MinUnitPrice):
			verr.Add(domain.LineItemField(i, "unit_price"), domain.CodeMinValue, "unit_price must be at least 0.01")
			priceOK = false
		case !domain.HasAtMostPlaces(item.UnitPrice, domain.MoneyPlaces):
			verr.Add(domain.LineItemField(i, "unit_price"), domain.CodeMaxDecimalPlaces, "unit_price must have at most 2 decimal places")
			priceOK = false
		case !domain.FitsMoney(item.UnitPrice):
			verr.Add(domain.LineItemField(i, "unit_price"), domain.CodeMaxValue, "unit_price must be less than 100000000")
			priceOK = false
		}

		if quantityOK && priceOK {
			line.lineTotal = domain.LineTotal(line.quantity, line.unitPrice)
			if !domain.FitsMoney(line.lineTotal) {
				verr.Add(domain.LineItemField(i, "line_total"), domain.CodeMaxValue, "line total must be less than 100000000")
			}
		}

		out = append(out, line)
	}

	return out
}

func invalidStatusMessage(raw string) string {
	choices := make([]string, 0, len(domain.InvoiceStatuses))
	for _, status := range domain.InvoiceStatuses {
		choices = append(choices, string(status))
	}
	return "\"" + raw + "\" is not a valid status, expected one of " + strings.Join(choices, ", ")
}
