package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/config"
	"github.com/NivraSD/SignalDesk-sub028/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "signaldesk",
	Short: "SignalDesk - intelligence coordination engine",
	Long: `SignalDesk routes incoming intelligence signals, plans coordinated responses across
capability providers, escalates critical issues and learns from prediction outcomes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger, err = logging.New(cfg.Log.Level, verbose)
		if err != nil {
			return err
		}

		if !cmd.Flags().Changed("api") {
			apiAddr = "http://" + cfg.Server.Listen
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	apiAddr    string
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7480", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(opCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("signaldesk", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
