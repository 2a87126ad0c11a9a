package main

import (
	"github.com/spf13/cobra"

	"video-share-service/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "video-share-service",
		Short:         "Video transcoding and cross-site sharing service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $CONFIG_PATH or "+config.DefaultConfigPath+")")

	load := func() (*config.Config, error) {
		return config.Load(config.ResolvePath(configFlag))
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newWorkerCommand(load))
	rootCmd.AddCommand(newReconcileCommand(load))
	rootCmd.AddCommand(newTokenCommand(load))
	return rootCmd
}

type configLoader func() (*config.Config, error)
