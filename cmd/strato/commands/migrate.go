package commands

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/store"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database schema migrations",
	Long: `Apply pending schema migrations and exit. The server applies
migrations on startup as well; this command exists for running them
separately, e.g. from an init container.`,
	Run: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "PostgreSQL connection string (or DATABASE_URL env var)")
}

func runMigrate(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("migrate")

	dsn := migrateDatabaseURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		HandleError(os.ErrInvalid, "database-url flag or DATABASE_URL env var is required")
	}

	st, err := store.New(dsn)
	HandleError(err, "Store initialization error")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	HandleError(st.Migrate(ctx), "Migration error")
	logger.Info("Migrations applied")
}
