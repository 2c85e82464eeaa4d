package database

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseLogLevel("off"))
	assert.Equal(t, gormlogger.Error, ParseLogLevel(" ERROR "))
	assert.Equal(t, gormlogger.Info, ParseLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, ParseLogLevel("verbose"))
}

func TestMaintenanceTarget(t *testing.T) {
	name, admin, ok := maintenanceTarget("postgres://app:secret@db:5432/pictures?sslmode=disable")
	require.True(t, ok)
	assert.Equal(t, "pictures", name)
	assert.Equal(t, "postgres://app:secret@db:5432/postgres?sslmode=disable", admin)

	for _, dsn := range []string{
		"host=db user=app dbname=pictures",
		"postgres://app@db:5432/postgres",
		"postgres://app@db:5432",
	} {
		_, _, ok := maintenanceTarget(dsn)
		assert.False(t, ok, dsn)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"pictures"`, quoteIdentifier("pictures"))
	assert.Equal(t, `"odd""name"`, quoteIdentifier(`odd"name`))
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestConnectStopsRetryingWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Connect(ctx, Config{
		DSN:             "host=127.0.0.1 port=1 user=app dbname=pictures sslmode=disable connect_timeout=1",
		ConnectAttempts: 5,
		RetryDelay:      time.Minute,
	}, zerolog.Nop())

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 30*time.Second)
}
