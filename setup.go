package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create indexes and tables, then the admin account",
		Long: `setup prepares the configured store (MongoDB indexes or MySQL tables) and creates
the admin account from admin.email / admin.password. It only runs in maintenance mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()

			if !a.cfg.App.Maintenance {
				return errors.New("setup requires maintenance mode, set MAINTENANCE=1")
			}
			if a.cfg.Admin.Email == "" {
				return errors.New("admin.email (ADMIN_EMAIL) must be set")
			}
			if err := a.store.Prepare(ctx); err != nil {
				return err
			}

			admin, created, err := a.services.Accounts.EnsureAdmin(ctx, a.cfg.Admin.Name, a.cfg.Admin.Email, a.cfg.Admin.Password)
			if err != nil {
				return err
			}
			a.logger.Info("setup complete", zap.String("admin_id", admin.ID), zap.Bool("admin_created", created))
			return nil
		},
	}
}
