package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"purchases/internal/infrastructure/mysql"
)

const testDatabase = "purchases_test"

var (
	containerOnce sync.Once
	container     *tcmysql.MySQLContainer
	containerDSN  string
	containerErr  error
)

// SetupTestDB returns a connection to a migrated MySQL test database.
// TEST_MYSQL_DSN wins when set; otherwise one container is started per test
// binary. The test is skipped when neither is available.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		if testing.Short() {
			t.Skip("skipping database test in short mode")
		}
		dsn = startContainer(t)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	if err := mysql.Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func startContainer(t *testing.T) string {
	t.Helper()

	containerOnce.Do(func() {
		defer func() {
			// testcontainers panics when no docker host can be resolved.
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker is not available: %v", r)
			}
		}()

		ctx := context.Background()
		c, err := tcmysql.Run(ctx, "mysql:8.0",
			tcmysql.WithDatabase(testDatabase),
			tcmysql.WithUsername("root"),
			tcmysql.WithPassword("secret"),
		)
		if err != nil {
			containerErr = err
			return
		}
		container = c
		containerDSN, containerErr = c.ConnectionString(ctx, "parseTime=true")
	})

	if containerErr != nil {
		t.Skipf("mysql container not available: %v", containerErr)
	}
	return containerDSN
}

// CleanupTestDB empties the order tables and closes db.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for _, table := range []string{"order_items", "orders"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// RunTests is meant for TestMain. It stops the shared container, if one was
// started, once the package tests are done.
func RunTests(m *testing.M) int {
	code := m.Run()
	if container != nil {
		_ = testcontainers.TerminateContainer(container)
	}
	return code
}
