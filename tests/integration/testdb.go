// Package integration runs the storage adapters against real PostgreSQL and
// Redis instances started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/infrastructure/migration"
	"github.com/prostor/erpsync/internal/infrastructure/persistence"
)

var (
	// Shared containers for all tests in the package
	sharedPostgres    testcontainers.Container
	sharedPostgresDSN string
	sharedPostgresMu  sync.Mutex
)

// TestDB is a migrated PostgreSQL database
type TestDB struct {
	Database  *persistence.Database
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestDB starts a dedicated PostgreSQL container and applies the
// embedded migrations.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	container, dsn := startPostgres(t, "erpsync_test")
	tdb := connect(t, dsn)
	tdb.Container = container
	tdb.migrateUp()

	t.Cleanup(func() {
		tdb.Close()
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
	return tdb
}

// NewSharedTestDB returns a connection to a package-wide container that is
// migrated once. Callers clean the tables they touch.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	sharedPostgresMu.Lock()
	if sharedPostgres == nil {
		container, dsn := startPostgres(t, "erpsync_shared_test")
		sharedPostgres = container
		sharedPostgresDSN = dsn
		tdb := connect(t, dsn)
		tdb.migrateUp()
		tdb.Close()
	}
	dsn := sharedPostgresDSN
	sharedPostgresMu.Unlock()

	tdb := connect(t, dsn)
	tdb.Container = sharedPostgres
	t.Cleanup(tdb.Close)
	return tdb
}

func startPostgres(t *testing.T, dbName string) (testcontainers.Container, string) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")
	return container, dsn
}

func connect(t *testing.T, dsn string) *TestDB {
	t.Helper()

	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormLog = logger.NewGormLogger(zaptest.NewLogger(t), gormlogger.Info, 0)
	}

	database, err := persistence.Open(gormpostgres.Open(dsn), &config.DatabaseConfig{
		DBName:          "erpsync_test",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
	}, persistence.WithGormLogger(gormLog))
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := database.DB.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	return &TestDB{Database: database, DB: database.DB, SqlDB: sqlDB, DSN: dsn, t: t}
}

// migrateUp applies the embedded migrations through their own connection,
// since closing the migrator closes the database handle it was given.
func (tdb *TestDB) migrateUp() {
	tdb.t.Helper()

	sqlDB, err := sql.Open("postgres", tdb.DSN)
	require.NoError(tdb.t, err)

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(tdb.t, err, "Failed to create migrator")
	defer m.Close()

	require.NoError(tdb.t, m.Up(), "Failed to run migrations")
}

// Close closes the database connection
func (tdb *TestDB) Close() {
	if tdb.Database != nil {
		_ = tdb.Database.Close()
	}
}

// Truncate empties the given tables
func (tdb *TestDB) Truncate(tables ...string) {
	tdb.t.Helper()
	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// NewTestRedis starts a Redis container and returns a connected client
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	skipShort(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get Redis endpoint")

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err(), "Failed to ping Redis")
	t.Cleanup(func() { _ = client.Close() })
	return client
}
