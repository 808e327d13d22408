package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/pilgi/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := app.Load(configFile)
		if err != nil {
			return err
		}
		return app.Serve(cmd.Context(), cfg)
	},
}
