package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/skyAuth/store/postgres"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply the Postgres schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := postgres.Up
			if len(args) == 1 {
				dir = postgres.Direction(strings.ToLower(args[0]))
			}
			if dsn == "" {
				cfg, err := flags.load()
				if err != nil {
					return err
				}
				dsn = cfg.Storage.DSN
			}
			if dsn == "" {
				return fmt.Errorf("no DSN: set --dsn or storage.dsn")
			}

			ctx := cmd.Context()
			store, err := postgres.Open(ctx, dsn, postgres.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := postgres.Migrate(ctx, store.Pool(), dir)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to storage.dsn)")
	return cmd
}
