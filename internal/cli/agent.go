package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/debugctl/internal/control"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a debuggee agent against the controller",
	Long: `agent registers the configured debuggee, follows its active breakpoints and
reports each one back. Breakpoint evaluation is not supported; every breakpoint
is completed with an error status.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewAgentApp(ctx, appCfg, nil)
	if err != nil {
		slog.Error("Failed to initialize agent", "error", err)
		return err
	}

	slog.Info("Agent started",
		"project", appCfg.Agent.Project,
		"uniquifier", appCfg.Agent.Uniquifier,
		"endpoint", appCfg.Controller.Endpoint,
	)
	if err := app.Run(ctx); err != nil {
		slog.Error("Agent failed", "error", err)
		return err
	}
	slog.Info("Agent stopped")
	return nil
}
