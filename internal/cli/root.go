package cli

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/debugctl/internal/core/config"
	"github.com/vietddude/debugctl/internal/core/logging"
)

var (
	cfgPath string
	isDebug bool

	appCfg    *config.AppConfig
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "debugctl",
	Short: "Cloud Debugger controller client, agent and reference controller",
	Long: `debugctl talks to a Controller2 debugger service. It can run a debuggee agent,
a reference controller, or issue one-shot register and list calls.`,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setup loads .env and the config file, then installs the logger. A missing
// default config file falls back to defaults and the environment.
func setup(cmd *cobra.Command, args []string) error {
	config.LoadEnv()

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		logging.Setup(logging.Config{}, isDebug)
		slog.Error("Failed to load config", "error", err)
		return err
	}

	appCfg = cfg
	logCloser = logging.Setup(cfg.Logging, isDebug)
	slog.Debug("Logger initialized", "config", cfgPath)
	return nil
}
