package commands

import (
	"fmt"

	"skillfund/db"
	pkgdb "skillfund/pkg/db"

	"github.com/spf13/cobra"
)

const migrationsDir = "migrations"

func migrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				files, err := pkgdb.MigrationFiles(db.Migrations, migrationsDir)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}

			_, conn, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := pkgdb.Migrate(cmd.Context(), conn, db.Migrations, migrationsDir, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list migrations without applying them")
	return cmd
}
