package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print the domain events published on NATS until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()
			if a.nats == nil {
				return errors.New("nats.url (NATS_URL) is not configured")
			}

			sub, err := a.nats.Subscribe(func(subject string, data []byte) {
				a.logger.Info("event", zap.String("subject", subject), zap.ByteString("payload", data))
			})
			if err != nil {
				return err
			}
			defer func() { _ = sub.Unsubscribe() }()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sig:
			case <-ctx.Done():
			}
			return nil
		},
	}
}
