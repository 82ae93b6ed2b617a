package main

import (
	"github.com/spf13/cobra"

	"pageassist/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = cfg.Listen
		}
		srv := server.New(server.Options{
			Orchestrator: application.orchestrator,
			History:      application.history,
			Providers:    application.providers,
			Prompts:      application.prompts,
			Auth:         application.auth,
			Indexer:      application.indexer,
		})
		return srv.Run(addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "address to listen on")
}
