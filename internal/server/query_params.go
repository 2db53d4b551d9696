package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return nil, errors.New("invalid_date")
	}
	return &parsed, nil
}

func parseOptionalDecimal(value string) (*decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, errors.New("invalid_decimal")
	}
	return &parsed, nil
}

// fieldDecodeError reports a JSON value that decoded but was not acceptable.
type fieldDecodeError struct {
	field   string
	message string
}

func (e *fieldDecodeError) Error() string {
	return e.field + ": " + e.message
}

// flexibleID accepts an identifier sent either as a JSON number or a string.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &fieldDecodeError{field: "id", message: "id must be a number or a string"}
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return &fieldDecodeError{field: "id", message: "id must be a number or a string"}
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) String() string {
	return string(f)
}

// dateValue is a calendar date sent as "YYYY-MM-DD".
type dateValue struct {
	time.Time
}

func (d *dateValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &fieldDecodeError{field: "date", message: "date must be a string formatted as YYYY-MM-DD"}
	}
	parsed, err := parseOptionalDate(raw)
	if err != nil {
		return &fieldDecodeError{field: "date", message: "date must be formatted as YYYY-MM-DD"}
	}
	if parsed != nil {
		d.Time = *parsed
	}
	return nil
}

func (d *dateValue) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
