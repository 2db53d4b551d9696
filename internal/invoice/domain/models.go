// Package domain contains persistence models and rules for invoicing.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoiceStatuses lists every valid status in display order.
var InvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

func (s InvoiceStatus) Valid() bool {
	for _, status := range InvoiceStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus normalizes raw and reports whether it names a known status.
func ParseInvoiceStatus(raw string) (InvoiceStatus, bool) {
	status := InvoiceStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

const (
	MaxInvoiceNumberLength = 20
	MaxCustomerNameLength  = 100
	MaxDescriptionLength   = 255
	MaxQuantity            = 2147483647
)

// Invoice is a billing header owning one or more line items.
type Invoice struct {
	ID            snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	InvoiceNumber string         `gorm:"type:varchar(20);not null;uniqueIndex:ux_invoices_invoice_number"`
	CustomerName  string         `gorm:"type:varchar(100);not null"`
	Date          datatypes.Date `gorm:"not null;index"`
	Status        InvoiceStatus  `gorm:"type:varchar(10);not null;default:'draft';index"`
	LineItems     []LineItem     `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`

	// Derived on read, never stored.
	TotalAmount decimal.Decimal `gorm:"-"`
	TotalRule   TotalRule       `gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItem is a single billable entry under one invoice.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey;autoIncrement:false"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	Description string          `gorm:"type:varchar(255);not null"`
	Quantity    int64           `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }

// DateValue returns the invoice date as a UTC midnight time.
func (i Invoice) DateValue() time.Time {
	t := time.Time(i.Date)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
