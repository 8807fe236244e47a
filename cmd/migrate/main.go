// Command migrate applies the fiscal schema migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(flag.Args(), resolveMigrationsPath(migrationsPath), log, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
}

// resolveMigrationsPath returns the explicit path, ./migrations, or the
// migrations directory next to the binary's repository root, in that order.
func resolveMigrationsPath(explicit string) string {
	path := explicit
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func run(args []string, migrationsPath string, log *zap.Logger, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command := args[0]
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	// create and list work on the directory only
	switch command {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("%w: migration name required", errUsage)
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		mf, err := migration.CreateMigration(migrationsPath, args[1], description)
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	case "list":
		migrations, err := migration.ListMigrations(migrationsPath)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			fmt.Fprintln(out, "  -", m)
		}
		log.Info("Available migrations", zap.Int("count", len(migrations)))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		return err
	}
	defer m.Close()

	return execute(m, command, args[1:], log)
}

func execute(m *migration.Migrator, command string, rest []string, log *zap.Logger) error {
	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(rest, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		n, err := intArg(rest, "version")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: version must not be negative", errUsage)
		}
		return m.GoTo(uint(n))
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		n, err := intArg(rest, "version")
		if err != nil {
			return err
		}
		return m.Force(n)
	case "drop":
		if len(rest) == 0 || (rest[0] != "-confirm" && rest[0] != "--confirm") {
			return fmt.Errorf("%w: drop requires -confirm", errUsage)
		}
		return m.Drop()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func intArg(rest []string, name string) (int, error) {
	if len(rest) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, name)
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, name, rest[0])
	}
	return n, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Fiscal Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force set migration version (use with caution)
  drop -confirm         Drop all database objects
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  FISCAL_DATABASE_HOST, FISCAL_DATABASE_PORT, FISCAL_DATABASE_USER,
  FISCAL_DATABASE_PASSWORD, FISCAL_DATABASE_DBNAME, FISCAL_DATABASE_SSLMODE`)
}
