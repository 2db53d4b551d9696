package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migration_test?mode=memory&cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(conn, "sqlite"))

	migrator := conn.Migrator()
	assert.True(t, migrator.HasTable(&invoicedomain.Invoice{}))
	assert.True(t, migrator.HasTable(&invoicedomain.LineItem{}))
	assert.True(t, migrator.HasIndex(&invoicedomain.Invoice{}, "ux_invoices_invoice_number"))
}

func TestRunRequiresConnection(t *testing.T) {
	assert.Error(t, Run(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}
