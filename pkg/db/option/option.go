// Package option holds composable gorm query options.
package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/invoicekit/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ        Operator = "="
	GTE       Operator = ">="
	LTE       Operator = "<="
	IContains Operator = "icontains"
	Prefix    Operator = "prefix"
	In        Operator = "in"
)

// likeEscape must read the same inside ESCAPE '...' on postgres, mysql and
// sqlite.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator renders a single condition. Field names are never taken from
// user input, callers pass column names they own.
func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		sql, args, ok := renderCondition(cond)
		if !ok {
			return db
		}
		return db.Where(sql, args...)
	})
}

// AnyOf ORs together a set of conditions inside one parenthesised group.
func AnyOf(conds ...Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		clauses := make([]string, 0, len(conds))
		args := make([]any, 0, len(conds))
		for _, cond := range conds {
			sql, condArgs, ok := renderCondition(cond)
			if !ok {
				continue
			}
			clauses = append(clauses, sql)
			args = append(args, condArgs...)
		}
		if len(clauses) == 0 {
			return db
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	})
}

func renderCondition(cond Condition) (string, []any, bool) {
	switch cond.Operator {
	case IContains:
		return fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '%s'", cond.Field, likeEscape), []any{ContainsPattern(fmt.Sprint(cond.Value))}, true
	case Prefix:
		return fmt.Sprintf("%s LIKE ? ESCAPE '%s'", cond.Field, likeEscape), []any{PrefixPattern(fmt.Sprint(cond.Value))}, true
	case In:
		return fmt.Sprintf("%s IN ?", cond.Field), []any{cond.Value}, true
	case EQ, GTE, LTE:
		return fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), []any{cond.Value}, true
	default:
		return "", nil, false
	}
}

// ContainsPattern builds a lower-cased LIKE pattern matching value anywhere.
// Wildcards in value match literally.
func ContainsPattern(value string) string {
	return "%" + EscapeLike(strings.ToLower(value)) + "%"
}

// PrefixPattern builds a LIKE pattern matching values that start with value.
func PrefixPattern(value string) string {
	return EscapeLike(value) + "%"
}

// EscapeLike escapes LIKE wildcards for use with ESCAPE '!'.
func EscapeLike(value string) string {
	return likeEscaper.Replace(value)
}

type OrderBy struct {
	Field string
	Desc  bool
}

type QuerySortBy struct {
	Allow   map[string]bool
	Default []OrderBy
	Orders  []OrderBy
}

// WithSortBy applies the requested orders that are allowed, falling back to
// the defaults when none survive. id is always the final tie-breaker.
func WithSortBy(sort QuerySortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		orders := make([]OrderBy, 0, len(sort.Orders))
		for _, o := range sort.Orders {
			if sort.Allow[o.Field] {
				orders = append(orders, o)
			}
		}
		if len(orders) == 0 {
			orders = sort.Default
		}

		hasID := false
		for _, o := range orders {
			db = db.Order(orderClause(o))
			if o.Field == "id" {
				hasID = true
			}
		}
		if !hasID {
			db = db.Order("id asc")
		}
		return db
	})
}

// ParseOrdering parses a comma separated ordering expression such as
// "-date,customer_name".
func ParseOrdering(raw string) []OrderBy {
	parts := strings.Split(raw, ",")
	out := make([]OrderBy, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		field := strings.TrimPrefix(part, "-")
		if field == "" {
			continue
		}
		out = append(out, OrderBy{Field: field, Desc: desc})
	}
	return out
}

func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if page.Limit > 0 {
			db = db.Limit(page.Limit)
		}
		if page.Offset > 0 {
			db = db.Offset(page.Offset)
		}
		return db
	})
}

func orderClause(o OrderBy) string {
	if o.Desc {
		return o.Field + " desc"
	}
	return o.Field + " asc"
}
