// Command graphdb is boltgraph's operator CLI: schema migration and
// connectivity status, in the teacher's cmd/cli one-command-per-verb style.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"boltgraph/driver"
	"boltgraph/internal/migrate"
	"boltgraph/session"
)

func main() {
	root := &cobra.Command{Use: "graphdb"}
	root.AddCommand(migrateCmd())
	root.AddCommand(statusCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	var url, dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrations, err := migrate.Discover(dir)
			if err != nil {
				return err
			}
			d, err := driver.New(url, driver.Config{})
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			ran, err := migrate.Apply(ctx, d, migrations, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return err
			}
			for _, m := range ran {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %04d_%s\n", m.Version, m.Name)
			}
			if len(ran) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "connection URL (bolt|neo4j|memgraph://...)")
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory of .cypher files or migrations.yaml")
	cmd.MarkFlagRequired("url")
	return cmd
}

func statusCmd() *cobra.Command {
	var url, dir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrations, err := migrate.Discover(dir)
			if err != nil {
				return err
			}
			d, err := driver.New(url, driver.Config{})
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			sess, err := d.NewSession(ctx, session.Read)
			if err != nil {
				return err
			}
			defer sess.Close()

			applied, err := migrate.Applied(ctx, sess)
			if err != nil {
				return err
			}
			for _, m := range migrations {
				state := "pending"
				if applied[m.Version] {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%04d_%s\t%s\n", m.Version, m.Name, state)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "connection URL (bolt|neo4j|memgraph://...)")
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory of .cypher files or migrations.yaml")
	cmd.MarkFlagRequired("url")
	return cmd
}
