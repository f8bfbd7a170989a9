package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "chamran"
)

// BuildTime is set with -ldflags at release time.
var BuildTime = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Social network backend",
		Long: `chamran serves users, follow relations, posts and comments over a JSON API.

Commands:
- serve     run the HTTP API
- setup     prepare the store and create the admin account
- populate  fill the store with a random social graph
- events    print the domain events published on NATS
- visualize print the follow graph in Graphviz DOT format`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				_ = os.Setenv("CONFIG_PATH", configPath)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(), setupCmd(), populateCmd(), eventsCmd(), visualizeCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}
