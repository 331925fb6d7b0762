package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/NivraSD/SignalDesk-sub028/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live signal dashboard",
	RunE:  runWatch,
}

var noAutostart bool

func init() {
	watchCmd.Flags().BoolVar(&noAutostart, "no-autostart", false, "Do not start the daemon if it is not running")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning() {
		if noAutostart {
			return fmt.Errorf("daemon not reachable at %s", apiAddr)
		}
		fmt.Println("SignalDesk daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	if err := tui.New(apiAddr).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning() bool {
	_, err := CheckHealth()
	return err == nil
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, "daemon", "--config", configPath)
	configureDaemonProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ {
		if isDaemonRunning() {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr)
}
