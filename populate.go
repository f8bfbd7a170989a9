package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/chamran/seed"
)

func populateCmd() *cobra.Command {
	var (
		opts  seed.Options
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Fill the store with a random social graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()
			if err := a.store.Prepare(ctx); err != nil {
				return err
			}

			if reset {
				n, err := seed.Reset(ctx, a.services)
				if err != nil {
					return err
				}
				a.logger.Info("existing users deleted", zap.Int("count", n))
			}
			_, err = seed.New(a.services, a.logger, opts).Run(ctx)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Users, "users", 500, "Number of users to create")
	cmd.Flags().IntVar(&opts.MaxIsolated, "max-isolated", 100, "Users without any follow edge to keep")
	cmd.Flags().IntVar(&opts.MaxPosts, "max-posts", 5, "Maximum posts per user")
	cmd.Flags().IntVar(&opts.MaxComments, "max-comments", 10, "Maximum comments per post")
	cmd.Flags().StringVar(&opts.Password, "password", "populate", "Password of every generated account")
	cmd.Flags().IntVar(&opts.Workers, "workers", 8, "Concurrent writes")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete every member account first")
	return cmd
}
