// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wikiauth/pkg/authserver"
	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/storage"
	"github.com/stacklok/wikiauth/pkg/storage/sqlite"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// adminEnv is what every admin command works against.
type adminEnv struct {
	srv *authserver.Server
	db  *sqlite.DB
}

// withAdminEnv opens the server for the duration of fn.
func withAdminEnv(ctx context.Context, fn func(env *adminEnv) error) error {
	srv, db, err := openServer(ctx, viper.GetViper())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(&adminEnv{srv: srv, db: db})
}

func (e *adminEnv) team(ctx context.Context, subdomain string) (*storage.Team, error) {
	team, err := e.db.GetTeamBySubdomain(ctx, strings.ToLower(subdomain))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("team %q not found", subdomain)
	}
	return team, err
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage teams, users and OAuth clients",
	}
	cmd.AddCommand(newAdminTeamCmd(), newAdminUserCmd(), newAdminClientCmd())
	return cmd
}

type teamView struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Subdomain  string `json:"subdomain" yaml:"subdomain"`
	URL        string `json:"url" yaml:"url"`
	DCREnabled bool   `json:"dcr_enabled" yaml:"dcr_enabled"`
}

func newAdminTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}

	var (
		name, subdomain, output string
		dcr                     bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subdomain = strings.ToLower(subdomain)
			if !subdomainPattern.MatchString(subdomain) {
				return fmt.Errorf("invalid subdomain %q", subdomain)
			}
			if strings.TrimSpace(name) == "" {
				name = subdomain
			}
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				team := &storage.Team{
					ID:         uuid.NewString(),
					Name:       strings.TrimSpace(name),
					Subdomain:  subdomain,
					DCREnabled: dcr,
				}
				if err := env.db.CreateTeam(ctx, team); err != nil {
					if errors.Is(err, storage.ErrAlreadyExists) {
						return fmt.Errorf("subdomain %q is taken", subdomain)
					}
					return err
				}
				view := teamView{
					ID:         team.ID,
					Name:       team.Name,
					Subdomain:  team.Subdomain,
					URL:        env.srv.Tenants().URL(team),
					DCREnabled: team.DCREnabled,
				}
				return printOutput(cmd.OutOrStdout(), output, view, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created team %s (%s) at %s\n", view.Subdomain, view.ID, view.URL)
					return err
				})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Display name (defaults to the subdomain)")
	create.Flags().StringVar(&subdomain, "subdomain", "", "Subdomain the team is served on")
	create.Flags().BoolVar(&dcr, "dcr", false, "Allow dynamic client registration")
	create.Flags().StringVarP(&output, "output", "o", formatText, "Output format (text, json or yaml)")
	_ = create.MarkFlagRequired("subdomain")

	cmd.AddCommand(create, newSetDCRCmd(true), newSetDCRCmd(false))
	return cmd
}

func newSetDCRCmd(enabled bool) *cobra.Command {
	use, verb := "disable-dcr", "Disable"
	if enabled {
		use, verb = "enable-dcr", "Enable"
	}
	return &cobra.Command{
		Use:   use + " <subdomain>",
		Short: verb + " dynamic client registration for a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				team, err := env.team(ctx, args[0])
				if err != nil {
					return err
				}
				if err := env.db.SetTeamDCREnabled(ctx, team.ID, enabled); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "dynamic client registration for %s: %t\n", team.Subdomain, enabled)
				return err
			})
		},
	}
}

type userView struct {
	ID           string `json:"id" yaml:"id"`
	TeamID       string `json:"team_id" yaml:"team_id"`
	Name         string `json:"name" yaml:"name"`
	Email        string `json:"email,omitempty" yaml:"email,omitempty"`
	SessionToken string `json:"session_token" yaml:"session_token"`
}

func newAdminUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var teamSub, name, email, output string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print a session token for the authorize step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				team, err := env.team(ctx, teamSub)
				if err != nil {
					return err
				}
				user := &storage.User{
					ID:     uuid.NewString(),
					TeamID: team.ID,
					Name:   strings.TrimSpace(name),
					Email:  strings.TrimSpace(email),
				}
				if err := env.db.CreateUser(ctx, user); err != nil {
					return err
				}
				token, err := env.srv.Sessions().Issue(user)
				if err != nil {
					return err
				}
				view := userView{ID: user.ID, TeamID: team.ID, Name: user.Name, Email: user.Email, SessionToken: token}
				return printOutput(cmd.OutOrStdout(), output, view, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created user %s\nsession token: %s\n", view.ID, view.SessionToken)
					return err
				})
			})
		},
	}
	create.Flags().StringVar(&teamSub, "team", "", "Subdomain of the user's team")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVarP(&output, "output", "o", formatText, "Output format (text, json or yaml)")
	_ = create.MarkFlagRequired("team")

	cmd.AddCommand(create)
	return cmd
}

type clientView struct {
	ClientID        string     `json:"client_id" yaml:"client_id"`
	ClientSecret    string     `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	Name            string     `json:"name" yaml:"name"`
	Type            string     `json:"type" yaml:"type"`
	Dynamic         bool       `json:"dynamic" yaml:"dynamic"`
	Published       bool       `json:"published" yaml:"published"`
	RedirectURIs    []string   `json:"redirect_uris" yaml:"redirect_uris"`
	Scopes          []string   `json:"scopes" yaml:"scopes"`
	TokenAuthMethod string     `json:"token_endpoint_auth_method" yaml:"token_endpoint_auth_method"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	LastActiveAt    *time.Time `json:"last_active_at,omitempty" yaml:"last_active_at,omitempty"`
}

func viewClient(c *storage.Client, secret string) clientView {
	return clientView{
		ClientID:        c.PublicID,
		ClientSecret:    secret,
		Name:            c.Name,
		Type:            string(c.Type),
		Dynamic:         c.IsDynamic(),
		Published:       c.Published,
		RedirectURIs:    c.RedirectURIs,
		Scopes:          c.Scopes,
		TokenAuthMethod: c.TokenAuthMethod,
		CreatedAt:       c.CreatedAt,
		LastActiveAt:    c.LastActiveAt,
	}
}

func printClientCredentials(w io.Writer, v clientView) error {
	if _, err := fmt.Fprintf(w, "client_id: %s\n", v.ClientID); err != nil {
		return err
	}
	if v.ClientSecret != "" {
		if _, err := fmt.Fprintf(w, "client_secret: %s\n(the secret is shown only once)\n", v.ClientSecret); err != nil {
			return err
		}
	}
	return nil
}

func newAdminClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage OAuth clients",
	}
	cmd.AddCommand(
		newClientCreateCmd(),
		newClientListCmd(),
		newClientRotateSecretCmd(),
		newClientDeleteCmd(),
	)
	return cmd
}

func newClientCreateCmd() *cobra.Command {
	var (
		teamSub, userID, name, description, output string
		redirectURIs, scopes                       []string
		public, published                          bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an OAuth client owned by a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				team, err := env.team(ctx, teamSub)
				if err != nil {
					return err
				}
				user, err := env.db.GetUser(ctx, userID)
				if err != nil || user.TeamID != team.ID {
					return fmt.Errorf("user %q not found in team %s", userID, team.Subdomain)
				}

				md := clients.Metadata{
					Name:         name,
					Description:  description,
					RedirectURIs: redirectURIs,
					Scopes:       scopes,
					Published:    published,
				}
				if public {
					md.TokenAuthMethod = clients.AuthMethodNone
				}
				client, issued, err := env.srv.Clients().Register(ctx, md, team.ID, user.ID)
				if err != nil {
					return err
				}
				view := viewClient(client, issued.Secret)
				return printOutput(cmd.OutOrStdout(), output, view, func(w io.Writer) error {
					return printClientCredentials(w, view)
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&teamSub, "team", "", "Subdomain of the owning team")
	f.StringVar(&userID, "user", "", "ID of the creating user")
	f.StringVar(&name, "name", "", "Client name shown on the consent screen")
	f.StringVar(&description, "description", "", "Client description")
	f.StringSliceVar(&redirectURIs, "redirect-uri", nil, "Allowed redirect URI (repeatable)")
	f.StringSliceVar(&scopes, "scope", nil, "Scope the client may request (repeatable, defaults to read, create and write)")
	f.BoolVar(&public, "public", false, "Create a public client without a secret")
	f.BoolVar(&published, "published", false, "Make the client usable by every member of the team")
	f.StringVarP(&output, "output", "o", formatText, "Output format (text, json or yaml)")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("redirect-uri")
	return cmd
}

func newClientListCmd() *cobra.Command {
	var teamSub, output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a team's OAuth clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				team, err := env.team(ctx, teamSub)
				if err != nil {
					return err
				}
				list, err := env.srv.Clients().List(ctx, team.ID)
				if err != nil {
					return err
				}
				views := make([]clientView, 0, len(list))
				for _, c := range list {
					views = append(views, viewClient(c, ""))
				}
				return printOutput(cmd.OutOrStdout(), output, views, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					_, _ = fmt.Fprintln(tw, "CLIENT ID\tNAME\tTYPE\tDYNAMIC\tLAST ACTIVE")
					for _, v := range views {
						lastActive := "never"
						if v.LastActiveAt != nil {
							lastActive = v.LastActiveAt.UTC().Format(time.RFC3339)
						}
						_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", v.ClientID, v.Name, v.Type, v.Dynamic, lastActive)
					}
					return tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&teamSub, "team", "", "Subdomain of the team")
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format (text, json or yaml)")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func newClientRotateSecretCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "rotate-secret <client-id>",
		Short: "Replace a confidential client's secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				registry := env.srv.Clients()
				client, err := registry.FindByPublicID(ctx, args[0])
				if err != nil {
					return fmt.Errorf("client %q: %w", args[0], err)
				}
				secret, err := registry.RotateSecret(client)
				if err != nil {
					return err
				}
				if err := registry.Save(ctx, client); err != nil {
					return err
				}
				view := viewClient(client, secret)
				return printOutput(cmd.OutOrStdout(), output, view, func(w io.Writer) error {
					return printClientCredentials(w, view)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format (text, json or yaml)")
	return cmd
}

func newClientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id>",
		Short: "Delete a client and revoke everything issued to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withAdminEnv(ctx, func(env *adminEnv) error {
				registry := env.srv.Clients()
				client, err := registry.FindByPublicID(ctx, args[0])
				if err != nil {
					return fmt.Errorf("client %q: %w", args[0], err)
				}
				if err := registry.Retire(ctx, client); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted client %s\n", client.PublicID)
				return err
			})
		},
	}
}
