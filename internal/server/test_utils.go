package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/pkg/db/option"
)

type testCleanupRequest struct {
	Prefix string `json:"prefix"`
}

// TestCleanup removes every invoice whose number starts with prefix. It backs
// end-to-end suites that run against a shared database.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		AbortWithError(c, newValidationError("prefix", "required", "prefix is required"))
		return
	}

	ctx := c.Request.Context()
	var found []int64
	byPrefix := option.ApplyOperator(option.Condition{
		Field:    "invoice_number",
		Operator: option.Prefix,
		Value:    prefix,
	})
	if err := byPrefix.Apply(s.db.WithContext(ctx).Model(&invoicedomain.Invoice{})).
		Pluck("id", &found).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	ids := make([]string, 0, len(found))
	for _, id := range found {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	var deleted int64
	if len(ids) > 0 {
		var err error
		deleted, err = s.invoiceSvc.BatchDelete(ctx, ids)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
