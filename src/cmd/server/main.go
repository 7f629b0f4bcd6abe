package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aspoi/membership-payments/src/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Error("command failed", err, nil)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Membership payment intents and verification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml or json); environment variables override it")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newMigrateCommand(&configPath))
	return root
}
