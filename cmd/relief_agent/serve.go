package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/relief-intake/internal/server"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the intake, resource and matching endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT env var, then 8000)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Create tables and seed settings before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if serveMigrate {
		if err := a.store.Migrate(ctx, a.cfg.SeedSettings()); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	port := a.cfg.ListenPort()
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	srv := server.New(server.Config{
		Port:    port,
		Service: a.service,
		Logger:  a.logger,
	})
	return srv.Start(ctx)
}
