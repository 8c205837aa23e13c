package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"household-ledger/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := connect()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		v, err := database.Version(db)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema version", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
