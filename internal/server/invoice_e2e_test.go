package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicekit/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/repository"
	"github.com/smallbiznis/invoicekit/internal/invoice/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newE2EServer(t *testing.T, settings invoicedomain.Settings) *gin.Engine {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.LineItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.New(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Settings: invoicedomain.StaticSettings(settings),
	})
	return newTestServer(t, svc, db)
}

func createViaAPI(t *testing.T, r http.Handler, number, customer, date string) invoiceResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/invoices/", map[string]any{
		"invoice_number": number,
		"customer_name":  customer,
		"date":           date,
		"details": []map[string]any{
			{"description": "Consulting hours", "quantity": 2, "unit_price": "50.00"},
			{"description": "Support plan", "quantity": 3, "unit_price": "25.00"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp invoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestInvoiceLifecycleE2E(t *testing.T) {
	r := newE2EServer(t, invoicedomain.DefaultSettings())

	created := createViaAPI(t, r, "INV001", "Acme Corporation", "2024-01-15")
	assert.Equal(t, "175.00", created.TotalAmount)
	assert.Equal(t, "sum", created.TotalRule)
	assert.Equal(t, "draft", created.Status)
	require.Len(t, created.Details, 2)

	w := doJSON(t, r, http.MethodGet, "/invoices/"+created.ID+"/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched invoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "2024-01-15", fetched.Date)

	w = doJSON(t, r, http.MethodPost, "/invoices/", map[string]any{
		"invoice_number": "INV001",
		"customer_name":  "Someone else",
		"date":           "2024-01-16",
		"details":        []map[string]any{{"description": "x", "quantity": 1, "unit_price": "1.00"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invoice_number", payload.Errors[0].Field)
	assert.Equal(t, invoicedomain.CodeUnique, payload.Errors[0].Code)

	w = doJSON(t, r, http.MethodPut, "/invoices/"+created.ID+"/", map[string]any{
		"invoice_number": "INV001",
		"customer_name":  "Acme Corp",
		"date":           "2024-01-20",
		"status":         "sent",
		"details": []map[string]any{
			{"id": created.Details[0].ID, "description": "Consulting hours", "quantity": 1, "unit_price": "50.00"},
			{"description": "Travel", "quantity": 1, "unit_price": "30.00"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated invoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "sent", updated.Status)
	assert.Equal(t, "Acme Corp", updated.CustomerName)
	require.Len(t, updated.Details, 3)
	assert.Equal(t, "155.00", updated.TotalAmount)

	w = doJSON(t, r, http.MethodGet, "/invoices/"+created.ID+"/pdf/", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice-inv001.pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = doJSON(t, r, http.MethodDelete, "/invoices/"+created.ID+"/", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/invoices/"+created.ID+"/", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRejectsForeignLineItemE2E(t *testing.T) {
	r := newE2EServer(t, invoicedomain.DefaultSettings())

	first := createViaAPI(t, r, "INV001", "Acme", "2024-01-15")
	second := createViaAPI(t, r, "INV002", "Globex", "2024-01-16")

	w := doJSON(t, r, http.MethodPut, "/invoices/"+first.ID+"/", map[string]any{
		"invoice_number": "INV001",
		"customer_name":  "Acme",
		"date":           "2024-01-15",
		"details": []map[string]any{
			{"id": second.Details[0].ID, "description": "Hijack", "quantity": 1, "unit_price": "1.00"},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.NotEmpty(t, payload.Errors)
	assert.Equal(t, "details[0].id", payload.Errors[0].Field)
	assert.Equal(t, invoicedomain.CodeUnknownLineItem, payload.Errors[0].Code)
}

func TestListAndBatchDeleteE2E(t *testing.T) {
	settings := invoicedomain.DefaultSettings()
	settings.TotalRule = invoicedomain.TotalRuleHalved
	r := newE2EServer(t, settings)

	a := createViaAPI(t, r, "E2E-001", "Acme", "2024-01-10")
	b := createViaAPI(t, r, "E2E-002", "Globex", "2024-01-20")
	createViaAPI(t, r, "KEEP-001", "Initech", "2024-02-01")
	assert.Equal(t, "87.50", a.TotalAmount)

	w := doJSON(t, r, http.MethodGet, "/invoices/?limit=2&ordering=-date", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page listInvoicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(3), page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "KEEP-001", page.Results[0].InvoiceNumber)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "offset=2")
	assert.Nil(t, page.Previous)

	w = doJSON(t, r, http.MethodGet, "/invoices/?amount_due=10", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/invoices/batch_delete/", map[string]any{
		"ids": []string{a.ID, b.ID, "999"},
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Equal(t, "2", w.Header().Get("X-Deleted-Count"))

	w = doJSON(t, r, http.MethodGet, "/invoices/?search=e2e", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Zero(t, page.Count)
	assert.Empty(t, page.Results)

	w = doJSON(t, r, http.MethodPost, "/internal/test/cleanup", map[string]any{"prefix": "KEEP_"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"deleted":0}`, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/internal/test/cleanup", map[string]any{"prefix": "KEEP-"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())
}
