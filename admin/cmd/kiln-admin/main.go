package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/emberlabs/kiln/admin/internal/admin"
	"github.com/emberlabs/kiln/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// PostgreSQL configuration
	pgHostFlag := flag.String("postgres-host", "localhost", "PostgreSQL host (or set POSTGRES_HOST env var)")
	pgPortFlag := flag.String("postgres-port", "5432", "PostgreSQL port (or set POSTGRES_PORT env var)")
	pgDatabaseFlag := flag.String("postgres-db", "", "PostgreSQL database name (or set POSTGRES_DB env var)")
	pgUsernameFlag := flag.String("postgres-user", "", "PostgreSQL username (or set POSTGRES_USER env var)")
	pgPasswordFlag := flag.String("postgres-password", "", "PostgreSQL password (or set POSTGRES_PASSWORD env var)")
	pgSSLModeFlag := flag.String("postgres-sslmode", "disable", "PostgreSQL SSL mode (or set POSTGRES_SSLMODE env var)")

	// Commands
	pgMigrateFlag := flag.Bool("pg-migrate", false, "Run database migrations using goose")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the last database migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show database migration status")
	resetDBFlag := flag.Bool("reset-db", false, "Truncate all ledger tables (accounts, counters, events)")
	resetLedgerFlag := flag.String("reset-ledger", "", "Delete one named ledger's accounts, counter and events")
	resetBurnDataFlag := flag.Bool("reset-burn-data", false, "Rewrite one account's burn record (requires --ledger, --account, --amount)")
	ledgerFlag := flag.String("ledger", "", "Ledger name for --reset-burn-data")
	accountFlag := flag.String("account", "", "Account ID for --reset-burn-data")
	amountFlag := flag.String("amount", "", "New amount burned for --reset-burn-data, in base units")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	// Override PostgreSQL flags with environment variables if set
	if envPgHost := os.Getenv("POSTGRES_HOST"); envPgHost != "" {
		*pgHostFlag = envPgHost
	}
	if envPgPort := os.Getenv("POSTGRES_PORT"); envPgPort != "" {
		*pgPortFlag = envPgPort
	}
	if envPgDatabase := os.Getenv("POSTGRES_DB"); envPgDatabase != "" {
		*pgDatabaseFlag = envPgDatabase
	}
	if envPgUsername := os.Getenv("POSTGRES_USER"); envPgUsername != "" {
		*pgUsernameFlag = envPgUsername
	}
	if envPgPassword := os.Getenv("POSTGRES_PASSWORD"); envPgPassword != "" {
		*pgPasswordFlag = envPgPassword
	}
	if envPgSSLMode := os.Getenv("POSTGRES_SSLMODE"); envPgSSLMode != "" {
		*pgSSLModeFlag = envPgSSLMode
	}

	cfg := admin.PgConfig{
		Host:     *pgHostFlag,
		Port:     *pgPortFlag,
		Database: *pgDatabaseFlag,
		Username: *pgUsernameFlag,
		Password: *pgPasswordFlag,
		SSLMode:  *pgSSLModeFlag,
	}

	requirePg := func(command string) error {
		if cfg.Database == "" {
			return fmt.Errorf("--postgres-db is required for %s", command)
		}
		if cfg.Username == "" {
			return fmt.Errorf("--postgres-user is required for %s", command)
		}
		return nil
	}

	// Execute commands
	if *pgMigrateFlag {
		if err := requirePg("--pg-migrate"); err != nil {
			return err
		}
		return admin.PgMigrateUp(log, cfg)
	}

	if *pgMigrateDownFlag {
		if err := requirePg("--pg-migrate-down"); err != nil {
			return err
		}
		return admin.PgMigrateDown(log, cfg)
	}

	if *pgMigrateStatusFlag {
		if err := requirePg("--pg-migrate-status"); err != nil {
			return err
		}
		return admin.PgMigrateStatus(log, cfg)
	}

	if *resetDBFlag {
		if err := requirePg("--reset-db"); err != nil {
			return err
		}
		return admin.ResetDB(log, cfg, *dryRunFlag, *yesFlag)
	}

	if *resetLedgerFlag != "" {
		if err := requirePg("--reset-ledger"); err != nil {
			return err
		}
		return admin.ResetLedger(log, cfg, *resetLedgerFlag, *dryRunFlag, *yesFlag)
	}

	if *resetBurnDataFlag {
		if err := requirePg("--reset-burn-data"); err != nil {
			return err
		}
		return admin.ResetBurnData(log, cfg, *ledgerFlag, *accountFlag, *amountFlag, *dryRunFlag, *yesFlag)
	}

	return nil
}
