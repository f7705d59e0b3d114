package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/debugctl/internal/control"
)

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run the reference Controller2 service",
	RunE:  runController,
}

func init() {
	controllerCmd.Flags().StringVar(&listenAddr, "listen", "", "gRPC listen address (overrides server.listen)")
	rootCmd.AddCommand(controllerCmd)
}

var listenAddr string

func runController(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		appCfg.Server.Listen = listenAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.NewControllerApp(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize controller", "error", err)
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start controller", "error", err)
		return err
	}

	slog.Info("Controller started",
		"listen", app.Addr(),
		"port", appCfg.Server.Port,
		"storage", appCfg.Server.Storage,
	)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		return err
	}
	slog.Info("Controller stopped gracefully")
	return nil
}
