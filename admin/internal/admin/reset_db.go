package admin

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ledgerTables are the tables holding ledger state, in drop order.
var ledgerTables = []string{"pool_events", "burn_accounts", "burn_counters"}

// confirm prompts for a literal "yes" on stdin. Returns false when the
// operator declines.
func confirm() (bool, error) {
	fmt.Printf("\n⚠️  This is a DESTRUCTIVE operation that cannot be undone!\n")
	fmt.Printf("Type 'yes' to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.TrimSpace(strings.ToLower(response)) != "yes" {
		fmt.Printf("\nConfirmation failed. Operation cancelled.\n")
		return false, nil
	}
	fmt.Println()
	return true, nil
}

// ResetDB truncates every ledger table, wiping all accounts, counters
// and events. The schema itself stays in place.
func ResetDB(log *slog.Logger, cfg PgConfig, dryRun, skipConfirm bool) error {
	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("⚠️  WARNING: This will TRUNCATE %d table(s) in database '%s':\n\n", len(ledgerTables), cfg.Database)
	for _, table := range ledgerTables {
		fmt.Printf("  - %s\n", table)
	}

	if dryRun {
		fmt.Println("\n[DRY RUN] Would truncate the above tables")
		return nil
	}

	if !skipConfirm {
		ok, err := confirm()
		if err != nil || !ok {
			return err
		}
	}

	for _, table := range ledgerTables {
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
		fmt.Printf("  ✓ Truncated %s\n", table)
	}

	log.Info("database reset completed", "tables", len(ledgerTables))
	return nil
}

// ResetLedger deletes one named ledger's accounts, burn counter and
// events, leaving other ledgers untouched.
func ResetLedger(log *slog.Logger, cfg PgConfig, ledger string, dryRun, skipConfirm bool) error {
	if ledger == "" {
		return fmt.Errorf("ledger name is required")
	}

	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var accounts, events int64
	if err := db.QueryRow("SELECT COUNT(*) FROM burn_accounts WHERE ledger = $1", ledger).Scan(&accounts); err != nil {
		return fmt.Errorf("failed to count accounts: %w", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM pool_events WHERE ledger = $1", ledger).Scan(&events); err != nil {
		return fmt.Errorf("failed to count events: %w", err)
	}

	fmt.Printf("⚠️  WARNING: This will DELETE ledger '%s': %d account(s), %d event(s), and its burn counter\n", ledger, accounts, events)

	if dryRun {
		fmt.Println("\n[DRY RUN] Would delete the above rows")
		return nil
	}

	if !skipConfirm {
		ok, err := confirm()
		if err != nil || !ok {
			return err
		}
	}

	for _, stmt := range []string{
		"DELETE FROM pool_events WHERE ledger = $1",
		"DELETE FROM burn_accounts WHERE ledger = $1",
		"DELETE FROM burn_counters WHERE ledger = $1",
	} {
		if _, err := db.Exec(stmt, ledger); err != nil {
			return fmt.Errorf("failed to delete ledger rows: %w", err)
		}
	}

	fmt.Printf("\nSuccessfully deleted ledger '%s'\n", ledger)
	log.Info("ledger reset completed", "ledger", ledger, "accounts", accounts, "events", events)
	return nil
}
