package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/render"
	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
)

type lineItemRequest struct {
	ID          *flexibleID     `json:"id"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoiceRequest struct {
	InvoiceNumber string            `json:"invoice_number"`
	CustomerName  string            `json:"customer_name"`
	Date          *dateValue        `json:"date"`
	Status        string            `json:"status"`
	Details       []lineItemRequest `json:"details"`
}

type batchDeleteRequest struct {
	IDs []flexibleID `json:"ids" binding:"required,min=1"`
}

type lineItemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type invoiceResponse struct {
	ID            string             `json:"id"`
	InvoiceNumber string             `json:"invoice_number"`
	CustomerName  string             `json:"customer_name"`
	Date          string             `json:"date"`
	Status        string             `json:"status"`
	Details       []lineItemResponse `json:"details"`
	TotalAmount   string             `json:"total_amount"`
	TotalRule     string             `json:"total_rule"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type listInvoicesResponse struct {
	Count    int64             `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []invoiceResponse `json:"results"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		InvoiceNumber: req.InvoiceNumber,
		CustomerName:  req.CustomerName,
		Date:          req.Date.ptr(),
		Status:        req.Status,
		LineItems:     toLineItemInputs(req.Details),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newInvoiceResponse(resp))
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		Limit         string `form:"limit"`
		Offset        string `form:"offset"`
		Status        string `form:"status"`
		InvoiceNumber string `form:"invoice_number"`
		CustomerName  string `form:"customer_name"`
		DateAfter     string `form:"date_after"`
		DateBefore    string `form:"date_before"`
		AmountDue     string `form:"amount_due"`
		Search        string `form:"search"`
		Ordering      string `form:"ordering"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invalid := &ValidationErrors{}
	dateAfter, err := parseOptionalDate(query.DateAfter)
	if err != nil {
		invalid.Errors = append(invalid.Errors, ValidationError{Field: "date_after", Code: invoicedomain.CodeInvalid, Message: "date_after must be formatted as YYYY-MM-DD"})
	}
	dateBefore, err := parseOptionalDate(query.DateBefore)
	if err != nil {
		invalid.Errors = append(invalid.Errors, ValidationError{Field: "date_before", Code: invoicedomain.CodeInvalid, Message: "date_before must be formatted as YYYY-MM-DD"})
	}
	amountDue, err := parseOptionalDecimal(query.AmountDue)
	if err != nil {
		invalid.Errors = append(invalid.Errors, ValidationError{Field: "amount_due", Code: invoicedomain.CodeInvalid, Message: "amount_due must be a number"})
	}
	if len(invalid.Errors) > 0 {
		AbortWithError(c, invalid)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Pagination:    pagination.ParseLimitOffset(query.Limit, query.Offset),
		Status:        query.Status,
		InvoiceNumber: query.InvoiceNumber,
		CustomerName:  query.CustomerName,
		DateAfter:     dateAfter,
		DateBefore:    dateBefore,
		AmountDue:     amountDue,
		Search:        query.Search,
		Ordering:      query.Ordering,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pageInfo := pagination.BuildPageInfo(requestURL(c), resp.Count, resp.Page)
	results := make([]invoiceResponse, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		results = append(results, newInvoiceResponse(inv))
	}

	c.JSON(http.StatusOK, listInvoicesResponse{
		Count:    pageInfo.Count,
		Next:     pageInfo.Next,
		Previous: pageInfo.Previous,
		Results:  results,
	})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newInvoiceResponse(item))
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		InvoiceNumber: req.InvoiceNumber,
		CustomerName:  req.CustomerName,
		Date:          req.Date.ptr(),
		Status:        req.Status,
		LineItems:     toLineItemInputs(req.Details),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newInvoiceResponse(resp))
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BatchDeleteInvoices answers 204, which cannot carry a body, so the outcome
// travels in headers.
func (s *Server) BatchDeleteInvoices(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	ids := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		ids = append(ids, id.String())
	}

	deleted, err := s.invoiceSvc.BatchDelete(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("X-Deleted-Count", strconv.FormatInt(deleted, 10))
	c.Header("X-Message", batchDeleteMessage(deleted))
	c.Status(http.StatusNoContent)
}

func (s *Server) GetInvoicePDF(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := s.invoiceSvc.GetByID(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.renderer.RenderPDF(ctx, item)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+render.Filename(item)+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func toLineItemInputs(details []lineItemRequest) []invoicedomain.LineItemInput {
	out := make([]invoicedomain.LineItemInput, 0, len(details))
	for _, d := range details {
		input := invoicedomain.LineItemInput{
			Description: d.Description,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
		}
		if d.ID != nil && d.ID.String() != "" {
			id := d.ID.String()
			input.ID = &id
		}
		out = append(out, input)
	}
	return out
}

func newInvoiceResponse(inv invoicedomain.Invoice) invoiceResponse {
	details := make([]lineItemResponse, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		details = append(details, lineItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(invoicedomain.MoneyPlaces),
			LineTotal:   item.LineTotal.StringFixed(invoicedomain.MoneyPlaces),
		})
	}

	return invoiceResponse{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		Date:          inv.DateValue().Format(dateOnlyLayout),
		Status:        string(inv.Status),
		Details:       details,
		TotalAmount:   inv.TotalAmount.StringFixed(invoicedomain.MoneyPlaces),
		TotalRule:     string(inv.TotalRule),
		CreatedAt:     inv.CreatedAt.UTC(),
		UpdatedAt:     inv.UpdatedAt.UTC(),
	}
}

func batchDeleteMessage(deleted int64) string {
	if deleted == 1 {
		return "Deleted 1 invoice."
	}
	return "Deleted " + strconv.FormatInt(deleted, 10) + " invoices."
}

// requestURL rebuilds the absolute URL the client used, honouring proxy
// headers for the scheme.
func requestURL(c *gin.Context) *url.URL {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}
	u := *c.Request.URL
	u.Scheme = scheme
	u.Host = c.Request.Host
	return &u
}
