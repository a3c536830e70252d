package main

import (
	httpadapter "retrieval-agent/internal/adapter/http"
	"retrieval-agent/internal/di"

	"github.com/spf13/cobra"
)

func serveCmd(load func() di.Config) *cobra.Command {
	var addr string
	var accessLog bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.NewContainer(cmd.Context(), load())
			if err != nil {
				return err
			}
			defer container.Close()

			server := httpadapter.NewServer(container.Executor, container.Logger, httpadapter.Config{
				Addr:      addr,
				Metrics:   container.Metrics,
				AccessLog: accessLog,
			})
			return server.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&accessLog, "access-log", true, "log every HTTP request")
	return cmd
}
