package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"household-ledger/internal/family"
	"household-ledger/internal/models"
)

var familyCmd = &cobra.Command{
	Use:   "family",
	Short: "Review families waiting for approval",
}

var familyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List families, optionally by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		db, _, err := connect()
		if err != nil {
			return err
		}
		fams, err := family.NewService(db).List(cmd.Context(), status)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tNAME\tSTATUS\tCREATED")
		for _, f := range fams {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Slug, f.Name, f.Status, f.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func decideCmd(use, short string, approve bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <slug>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, logg, err := connect()
			if err != nil {
				return err
			}
			fam, err := family.NewService(db).Decide(cmd.Context(), args[0], approve)
			if err != nil {
				return err
			}
			logg.WithFields(logrus.Fields{"slug": fam.Slug, "status": fam.Status}).Info("family decided")
			return nil
		},
	}
}

func init() {
	familyListCmd.Flags().String("status", models.FamilyStatusPendingAdmin, "filter by status (empty for all)")
	familyCmd.AddCommand(familyListCmd,
		decideCmd("approve", "Activate a pending family", true),
		decideCmd("reject", "Reject a pending family", false),
	)
	rootCmd.AddCommand(familyCmd)
}
