package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/media-tracker/internal/repo"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		repo.Close(db)
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", cfg.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
