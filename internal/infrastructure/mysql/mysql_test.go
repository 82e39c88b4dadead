package mysql

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"purchases/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:            "db",
		Port:            3307,
		User:            "purchases",
		Password:        "secret",
		Name:            "purchases",
		ConnMaxLifetime: time.Minute,
	})

	assert.True(t, strings.HasPrefix(dsn, "purchases:secret@tcp(db:3307)/purchases?"))
	assert.Contains(t, dsn, "parseTime=true")
}

func TestStatements(t *testing.T) {
	stmts := statements(schema)

	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS orders")
	assert.Contains(t, stmts[1], "ON DELETE CASCADE")
}
