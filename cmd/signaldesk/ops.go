package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var opCmd = &cobra.Command{
	Use:   "op <operation>",
	Short: "Run an engine operation",
	Long: `Runs one engine operation with a JSON request and prints the JSON result.

The request comes from --data, from --file, or from stdin when --file is "-".
With --local the operation runs in-process against the configured database
instead of through the daemon.`,
	Example: `  signaldesk op assess_urgency --data '{"type":"crisis","media_attention":"viral"}'
  signaldesk op prioritize_signal --file signal.json
  cat plan.json | signaldesk op coordinate_response --file -`,
	Args: cobra.ExactArgs(1),
	RunE: runOp,
}

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operations the daemon accepts",
	RunE:  runOps,
}

var (
	opData  string
	opFile  string
	opLocal bool
)

func init() {
	opCmd.Flags().StringVarP(&opData, "data", "d", "", "JSON request body")
	opCmd.Flags().StringVarP(&opFile, "file", "f", "", `Read the JSON request from a file ("-" for stdin)`)
	opCmd.Flags().BoolVar(&opLocal, "local", false, "Run in-process instead of through the daemon")
	opCmd.MarkFlagsMutuallyExclusive("data", "file")
}

func readRequest() ([]byte, error) {
	switch {
	case opFile == "-":
		return io.ReadAll(os.Stdin)
	case opFile != "":
		return os.ReadFile(opFile)
	case strings.TrimSpace(opData) != "":
		return []byte(opData), nil
	default:
		return []byte("{}"), nil
	}
}

func runOp(cmd *cobra.Command, args []string) error {
	body, err := readRequest()
	if err != nil {
		return fmt.Errorf("reading request: %w", err)
	}
	if !json.Valid(body) {
		return fmt.Errorf("request is not valid JSON")
	}

	if !opLocal {
		resp, err := apiPost("/ops/"+args[0], body)
		if err != nil {
			return err
		}
		return printJSON(resp)
	}

	rt, err := newRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	result, err := rt.engine.Execute(cmd.Context(), args[0], body)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runOps(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/ops")
	if err != nil {
		return err
	}

	var out struct {
		Operations []string `json:"operations"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return err
	}
	for _, name := range out.Operations {
		fmt.Println(name)
	}
	return nil
}
