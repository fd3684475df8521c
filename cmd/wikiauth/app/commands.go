// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the wikiauth command-line application.
package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/versions"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "WIKIAUTH"

// NewRootCmd creates a new root command for the wikiauth CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "wikiauth",
		DisableAutoGenTag: true,
		Short:             "OAuth 2.0 authorization server and MCP tool endpoint for team wikis",
		Long: `wikiauth issues and manages OAuth 2.0 credentials for third-party clients of a
team wiki, and serves the wiki's collections and documents as MCP tools to
clients holding a valid access token.

Configuration is read from flags, from WIKIAUTH_* environment variables
(WIKIAUTH_DATABASE_PATH, WIKIAUTH_HMAC_SECRET, ...) and from an optional
YAML file given with --config.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := loadConfigFile(viper.GetViper()); err != nil {
				return err
			}
			logger.Initialize()
			return nil
		},
		SilenceUsage: true,
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReapCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// bindLocalFlags binds a command's flags to viper keys of the same name.
// It runs as PreRunE so that commands sharing a flag name do not steal each
// other's binding.
func bindLocalFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			if output == formatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wikiauth %s (commit %s, built %s, %s %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().StringVar(&output, "output", formatText, "Output format (text or json)")
	return cmd
}
