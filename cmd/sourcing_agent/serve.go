package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes jobs, sourcing runs, the hiring funnel, learning and team matching.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Config{
		Port:         appConfig.Server.Port,
		Store:        a.store,
		Jobs:         a.jobs,
		Funnel:       a.funnel,
		Pipeline:     a.pipeline,
		Learning:     a.engine,
		Teams:        a.matcher,
		Agent:        appConfig.Learning.Agent,
		LearningRate: appConfig.Learning.LearningRate,
		JWT:          appConfig.Server.JWT(),
		RateLimit:    appConfig.RateLimit.Limiter(),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}
