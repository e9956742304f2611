// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/identitypool/auth/credentials/externalaccount"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "STSAUTH"

// config holds the resolved flag and environment values shared by all
// subcommands.
type config struct {
	v *viper.Viper
}

func (c *config) loadCredentials(w io.Writer) (*externalaccount.Credentials, error) {
	path := c.v.GetString("credentials")
	if path == "" {
		return nil, errors.New("stsauth: --credentials or STSAUTH_CREDENTIALS is required")
	}
	var logger *slog.Logger
	if c.v.GetBool("verbose") {
		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return externalaccount.NewCredentialsFromFile(path, &externalaccount.LoadOptions{
		Scopes:      c.v.GetStringSlice("scopes"),
		ExpireEarly: c.v.GetDuration("expire-early"),
		Logger:      logger,
	})
}

func (c *config) context(parent context.Context) (context.Context, context.CancelFunc) {
	if d := c.v.GetDuration("timeout"); d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

func newRootCmd() *cobra.Command {
	cfg := &config{v: viper.New()}
	rootCmd := &cobra.Command{
		Use:          "stsauth",
		Short:        "Exchange federated credentials for Google Cloud access tokens",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("stsauth: unable to bind flags: %w", err)
			}
			return nil
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.String("credentials", "", "path to an external_account credential configuration file")
	pf.StringSlice("scopes", nil, "scopes to request, overriding those in the configuration")
	pf.Duration("timeout", 30*time.Second, "overall timeout for network operations")
	pf.Duration("expire-early", 0, "treat tokens as expired this long before their expiry")
	pf.BoolP("verbose", "v", false, "log HTTP exchanges to stderr at debug level")

	cfg.v.SetEnvPrefix(envPrefix)
	cfg.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.v.AutomaticEnv()

	rootCmd.AddCommand(
		newTokenCmd(cfg),
		newInfoCmd(cfg),
		newSubjectTokenCmd(cfg),
	)
	return rootCmd
}

type tokenOutput struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
	Scopes      []string  `json:"scopes,omitempty"`
}

func newTokenCmd(cfg *config) *cobra.Command {
	var header bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Fetch an access token and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := cfg.loadCredentials(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := cfg.context(cmd.Context())
			defer cancel()
			tok, err := creds.Token(ctx)
			if err != nil {
				return err
			}
			if header {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Authorization: %s %s\n", tok.Type, tok.Value)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tokenOutput{
				AccessToken: tok.Value,
				TokenType:   tok.Type,
				Expiry:      tok.Expiry,
				Scopes:      tok.Scopes,
			})
		},
	}
	cmd.Flags().BoolVar(&header, "header", false, "print an HTTP Authorization header instead of JSON")
	return cmd
}

func newInfoCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the validated credential configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := cfg.loadCredentials(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), creds.Info())
		},
	}
}

func newSubjectTokenCmd(cfg *config) *cobra.Command {
	var claims bool
	cmd := &cobra.Command{
		Use:   "subject-token",
		Short: "Read the subject token from the credential source",
		Long: `Read the subject token from the configured file or URL without exchanging it.

With --claims the token is decoded as a JWT and its claims are printed. The
signature is not verified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := cfg.loadCredentials(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := cfg.context(cmd.Context())
			defer cancel()
			subjectToken, err := creds.RetrieveSubjectToken(ctx)
			if err != nil {
				return err
			}
			if !claims {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), subjectToken)
				return err
			}
			c, err := unverifiedClaims(subjectToken)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().BoolVar(&claims, "claims", false, "decode the token as a JWT and print its claims")
	return cmd
}

func unverifiedClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("stsauth: subject token is not a JWT: %w", err)
	}
	return claims, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
