package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NivraSD/SignalDesk-sub028/internal/engine"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Inspect the signal queue",
}

var signalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued signals, newest first",
	RunE:  runSignalsList,
}

var signalsShowCmd = &cobra.Command{
	Use:   "show <signal-id>",
	Short: "Show one signal",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignalsShow,
}

var signalsAckCmd = &cobra.Command{
	Use:   "ack <signal-id>",
	Short: "Acknowledge a pending signal",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignalsAck,
}

var (
	signalStatus string
	signalLimit  int
)

func init() {
	signalsCmd.AddCommand(signalsListCmd, signalsShowCmd, signalsAckCmd)

	signalsListCmd.Flags().StringVar(&signalStatus, "status", "pending", "Filter by status (pending, acknowledged, or empty for all)")
	signalsListCmd.Flags().IntVar(&signalLimit, "limit", 50, "Maximum number of signals")
}

func fetchSignals(status string, limit int) (*engine.SignalList, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	q.Set("limit", strconv.Itoa(limit))

	resp, err := apiGet("/signals?" + q.Encode())
	if err != nil {
		return nil, err
	}
	var list engine.SignalList
	if err := json.Unmarshal(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func runSignalsList(cmd *cobra.Command, args []string) error {
	list, err := fetchSignals(signalStatus, signalLimit)
	if err != nil {
		return err
	}

	if len(list.Signals) == 0 {
		fmt.Println("No signals found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tSCORE\tTYPE\tSTATUS\tPROVIDERS")
	for _, s := range list.Signals {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			truncateID(s.ID), s.PriorityTier, s.PriorityScore, s.SignalType, s.Status,
			truncate(strings.Join(s.RecommendedProviders, ","), 40))
	}
	return w.Flush()
}

func runSignalsShow(cmd *cobra.Command, args []string) error {
	list, err := fetchSignals("", 500)
	if err != nil {
		return err
	}
	for _, s := range list.Signals {
		if s.ID == args[0] || strings.HasPrefix(s.ID, args[0]) {
			out, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
	}
	return fmt.Errorf("signal %s not found in the latest 500 signals", args[0])
}

func runSignalsAck(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/signals/"+url.PathEscape(args[0])+"/ack", nil); err != nil {
		return err
	}
	fmt.Printf("Acknowledged signal %s\n", args[0])
	return nil
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
