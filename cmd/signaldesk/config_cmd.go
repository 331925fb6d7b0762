package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NivraSD/SignalDesk-sub028/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the SignalDesk configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configForce bool

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := config.Save(configPath, config.Default()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.Analysis.Analyzer.APIKey != "" {
		shown.Analysis.Analyzer.APIKey = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
