package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"household-ledger/internal/config"
	"household-ledger/internal/database"
)

var rootCmd = &cobra.Command{
	Use:           "householdctl",
	Short:         "Operator tasks for the household ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("householdctl")
		os.Exit(1)
	}
}

// connect opens the database configured by the environment, the same way the
// server does.
func connect() (*gorm.DB, *logrus.Logger, error) {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logg := config.NewLogger(cfg)
	db, err := database.Open(cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	return db, logg, nil
}
