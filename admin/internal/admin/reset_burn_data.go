package admin

import (
	"fmt"
	"log/slog"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// ResetBurnData rewrites one account's burn record directly in the
// database: amount burned, the derived balance due, and the ledger's
// total burn counter. For corrections when the API is unavailable.
func ResetBurnData(log *slog.Logger, cfg PgConfig, ledger, account, amount string, dryRun, skipConfirm bool) error {
	if ledger == "" {
		return fmt.Errorf("ledger name is required")
	}
	if account == "" {
		return fmt.Errorf("account is required")
	}
	newAmount, err := balance.FromDecimal(amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var oldAmount string
	err = db.QueryRow(
		"SELECT amount_burned::text FROM burn_accounts WHERE ledger = $1 AND account_id = $2",
		ledger, account,
	).Scan(&oldAmount)
	if err != nil {
		return fmt.Errorf("failed to load account %s on ledger %s: %w", account, ledger, err)
	}

	newDue := newAmount.MulUint64(engine.DefaultRewardMultiple)
	fmt.Printf("⚠️  WARNING: This will rewrite account '%s' on ledger '%s': amount_burned %s -> %s, balance_due -> %s\n",
		account, ledger, oldAmount, newAmount.String(), newDue.String())

	if dryRun {
		fmt.Println("\n[DRY RUN] Would rewrite the above account")
		return nil
	}

	if !skipConfirm {
		ok, err := confirm()
		if err != nil || !ok {
			return err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE burn_counters
		SET total_burned = total_burned - $2::numeric + $3::numeric
		WHERE ledger = $1
	`, ledger, oldAmount, newAmount.String()); err != nil {
		return fmt.Errorf("failed to adjust burn counter: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE burn_accounts
		SET amount_burned = $3::numeric, balance_due = $4::numeric
		WHERE ledger = $1 AND account_id = $2
	`, ledger, account, newAmount.String(), newDue.String()); err != nil {
		return fmt.Errorf("failed to rewrite account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	fmt.Printf("\nSuccessfully rewrote account '%s'\n", account)
	log.Info("burn data reset completed", "ledger", ledger, "account", account, "amount_burned", newAmount.String())
	return nil
}
