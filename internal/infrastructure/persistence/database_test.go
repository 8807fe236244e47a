package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type recordingPlugin struct {
	calls int
	err   error
}

func (p *recordingPlugin) RegisterOtelGorm(*gorm.DB) error {
	p.calls++
	return p.err
}

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 1,
	}
}

func newMockDatabase(t *testing.T, opts ...DatabaseOption) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	mock.ExpectPing()
	opts = append(opts, WithDialector(postgres.New(postgres.Config{Conn: mockDB})))
	db, err := NewDatabase(testDatabaseConfig(), opts...)
	require.NoError(t, err)
	return db, mock
}

func TestNewDatabase(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 7, stats.MaxOpenConnections)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("registers plugins", func(t *testing.T) {
		plugin := &recordingPlugin{}
		newMockDatabase(t, WithPlugin(plugin), WithPlugin(nil))
		assert.Equal(t, 1, plugin.calls)
	})

	t.Run("plugin failure aborts", func(t *testing.T) {
		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		plugin := &recordingPlugin{err: errors.New("callback already registered")}
		_, err = NewDatabase(testDatabaseConfig(),
			WithDialector(postgres.New(postgres.Config{Conn: mockDB})),
			WithPlugin(plugin))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to register database plugin")
	})

	t.Run("ping failure aborts", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		_, err = NewDatabase(testDatabaseConfig(), WithDialector(postgres.New(postgres.Config{Conn: mockDB})))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping database")
	})
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing()

		require.NoError(t, db.Ping(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context passes through", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing().WillReturnError(context.Canceled)

		err := db.Ping(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, shared.CodeOf(err))
	})
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)
	mock.ExpectClose()

	require.NoError(t, db.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
