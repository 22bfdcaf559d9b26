package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/db"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create database tables",
	Long:  "Creates the subscription, stats and token tables used by the filter service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		fmt.Println("Running migrations...")
		migrationSQL := `
			-- One subscription per owner; external_id is the provider's
			-- handle and the key inbound notifications are correlated by.
			CREATE TABLE IF NOT EXISTS subscriptions (
			    owner_id VARCHAR(255) PRIMARY KEY,
			    external_id VARCHAR(255) NOT NULL UNIQUE,
			    resource VARCHAR(255) NOT NULL,
			    client_state VARCHAR(64) NOT NULL,
			    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			    state VARCHAR(16) NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_subscriptions_external_id ON subscriptions(external_id);

			-- Append-only per-user counters.
			CREATE TABLE IF NOT EXISTS user_stats (
			    owner_id VARCHAR(255) PRIMARY KEY,
			    total_emails BIGINT NOT NULL DEFAULT 0 CHECK (total_emails >= 0),
			    spam_count BIGINT NOT NULL DEFAULT 0 CHECK (spam_count >= 0),
			    ham_count BIGINT NOT NULL DEFAULT 0 CHECK (ham_count >= 0)
			);

			-- Provider-issued tokens, overwritten on refresh.
			CREATE TABLE IF NOT EXISTS access_tokens (
			    owner_id VARCHAR(255) PRIMARY KEY,
			    token TEXT NOT NULL,
			    saved_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`

		if _, err := db.Pool.Exec(ctx, migrationSQL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		fmt.Println("✓ Database setup complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
