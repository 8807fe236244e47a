package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// Plugin is anything that installs GORM callbacks, such as the tracing plugin
type Plugin interface {
	RegisterOtelGorm(db *gorm.DB) error
}

type databaseOptions struct {
	logger  gormlogger.Interface
	plugins []Plugin
	dialect gorm.Dialector
}

// DatabaseOption is a functional option for NewDatabase
type DatabaseOption func(*databaseOptions)

// WithGormLogger routes GORM's statement log through the given logger
func WithGormLogger(l gormlogger.Interface) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = l
	}
}

// WithPlugin installs a callback plugin after the connection is opened
func WithPlugin(p Plugin) DatabaseOption {
	return func(o *databaseOptions) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithDialector replaces the postgres dialector; used by tests
func WithDialector(d gorm.Dialector) DatabaseOption {
	return func(o *databaseOptions) {
		o.dialect = d
	}
}

// NewDatabase opens the fiscal database, applies the pool settings and
// verifies the connection.
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	o := &databaseOptions{logger: gormlogger.Discard}
	for _, opt := range opts {
		opt(o)
	}
	if o.dialect == nil {
		o.dialect = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(o.dialect, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, p := range o.plugins {
		if err := p.RegisterOtelGorm(db); err != nil {
			return nil, fmt.Errorf("failed to register database plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mapError(err, "database")
	}
	return nil
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}
