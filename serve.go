package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/chamran/routes"
	"github.com/cppla/chamran/utils"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			if err := a.store.Prepare(ctx); err != nil {
				_ = a.close(ctx)
				return err
			}

			r := routes.SetupRouter(routes.Deps{
				Config:   a.cfg,
				Store:    a.store,
				Services: a.services,
				Checks:   a.checks(),
			})

			a.logger.Info("starting server",
				zap.String("port", a.cfg.App.Port),
				zap.String("driver", a.cfg.Database.Driver),
				zap.Bool("maintenance", a.cfg.App.Maintenance),
			)
			janitorCtx, stopJanitor := context.WithCancel(ctx)
			defer stopJanitor()
			utils.StartJanitor(janitorCtx, 5*time.Minute)

			return utils.GraceServer(":"+a.cfg.App.Port, r, a.close)
		},
	}
}
