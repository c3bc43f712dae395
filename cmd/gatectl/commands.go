// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/users/gate"
)

// # inspect

type inspection struct {
	gate.Attributes
	Age string `json:"age"`
}

func newInspectCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <account-id>",
		Short: "Print the persisted attribute snapshot of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := application.logger(cmd)

			client, err := application.redis(ctx, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			attributes, ok := application.gateStore(client, nil, logger).Cached(ctx, args[0])
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "no cached snapshot for %s\n", args[0])
				return nil
			}

			return printJSON(cmd.OutOrStdout(), inspection{
				Attributes: attributes,
				Age:        time.Since(attributes.FetchedAt).Round(time.Second).String(),
			})
		},
	}
}

// # invalidate

func newInvalidateCommand(application *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <account-id>...",
		Short: "Drop cached attributes on every replica",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := application.logger(cmd)

			client, err := application.redis(ctx, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			store := application.gateStore(client, nil, logger)
			for _, accountID := range args {
				if err := store.Invalidate(ctx, accountID); err != nil {
					return fmt.Errorf("gatectl: invalidate %s: %w", accountID, err)
				}
				logger.Info("gatectl_invalidated", slog.String("account_id", accountID))
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", accountID)
			}
			return nil
		},
	}
}

// # evaluate

type evaluation struct {
	Path       string          `json:"path"`
	Decision   gate.Decision   `json:"decision"`
	Attributes gate.Attributes `json:"attributes"`
}

func newEvaluateCommand(application *app) *cobra.Command {
	var (
		path    string
		require string
		role    string
		fresh   bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <account-id>",
		Short: "Run the composed gates for an account against live data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requirements, err := gate.ParseRequirements(require, role)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := application.logger(cmd)

			client, err := application.redis(ctx, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			backend, release, err := application.openBackend(ctx, application.settings.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer release()

			store := application.gateStore(client, backend, logger)
			attributes, _ := store.Attributes(ctx, args[0], fresh)

			subject := gate.Subject{Auth: gate.AuthAuthenticated, AccountID: args[0]}
			decision := gate.NewComposer(store, logger).Evaluate(ctx, requirements, subject, path)

			return printJSON(cmd.OutOrStdout(), evaluation{Path: path, Decision: decision, Attributes: attributes})
		},
	}

	cmd.Flags().StringVar(&path, "path", constants.RouteHome, "navigation target")
	cmd.Flags().StringVar(&require, "require", "auth,ban,country,dob", "comma separated checks")
	cmd.Flags().StringVar(&role, "role", "", "minimum role")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "skip cached snapshots")

	return cmd
}
