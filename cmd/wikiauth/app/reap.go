// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wikiauth/pkg/authserver/reaper"
)

func newReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run a single reaper pass and exit",
		Long: `Delete dynamically registered clients that were never used or have been idle
for too long, then purge expired authorization codes and tokens. Use this from
an external scheduler when serve runs with --no-reaper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			v := viper.GetViper()

			db, err := openDatabase(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			r, err := reaper.New(db, reaperConfigFrom(v))
			if err != nil {
				return err
			}
			res, err := r.RunOnce(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d clients and %d expired records\n", res.Clients, res.Expired)
			return err
		},
	}
}
