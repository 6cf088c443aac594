package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cliError carries the process exit code a failed control-API call
// should produce, so main can os.Exit with it after cobra has already
// printed the error.
type cliError struct {
	code int
	msg  string
}

func (e *cliError) Error() string { return e.msg }

// report prints the raw response body as received and turns a non-2xx
// status into a *cliError so main exits non-zero.
func report(status int, raw []byte, err error) error {
	if err != nil {
		return &cliError{code: 1, msg: err.Error()}
	}
	fmt.Fprintln(os.Stdout, string(raw))
	if code := exitCodeFor(status); code != 0 {
		return &cliError{code: code, msg: fmt.Sprintf("server responded %d", status)}
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:           "queuectlctl",
		Short:         "Operator CLI for a queuectl server's control-plane API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:7337", "base URL of the queuectl control API")

	newC := func() *client { return newClient(addr) }

	root.AddCommand(newEnqueueCmd(newC))
	root.AddCommand(newListCmd(newC))
	root.AddCommand(newStatusCmd(newC))
	root.AddCommand(newDLQCmd(newC))
	root.AddCommand(newConfigCmd(newC))
	root.AddCommand(newShutdownCmd(newC))
	return root
}

func newEnqueueCmd(newC func() *client) *cobra.Command {
	var id, command string
	var maxRetries int
	var runAfterMs int64

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a shell command as a new job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if command == "" {
				return &cliError{code: 1, msg: "--command is required"}
			}
			body := map[string]any{"command": command}
			if id != "" {
				body["id"] = id
			}
			if cmd.Flags().Changed("max-retries") {
				body["max_retries"] = maxRetries
			}
			if runAfterMs > 0 {
				body["run_after"] = runAfterMs
			}
			status, raw, err := newC().do("POST", "/jobs", body, nil)
			return report(status, raw, err)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "job id (server-generated if omitted)")
	cmd.Flags().StringVar(&command, "command", "", "shell command to run")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "per-job retry cap override")
	cmd.Flags().Int64Var(&runAfterMs, "run-after-ms", 0, "earliest eligible time, epoch milliseconds (0 = immediately)")
	return cmd
}

func newListCmd(newC func() *client) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/jobs"
			if state != "" {
				path += "?state=" + state
			}
			status, raw, err := newC().do("GET", path, nil, nil)
			return report(status, raw, err)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter: pending|processing|completed|dead")
	return cmd
}

func newStatusCmd(newC func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job and worker-pool summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("GET", "/status", nil, nil)
			return report(status, raw, err)
		},
	}
}

func newDLQCmd(newC func() *client) *cobra.Command {
	dlq := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and requeue dead-lettered jobs",
	}

	dlq.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every dead job",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("GET", "/dlq", nil, nil)
			return report(status, raw, err)
		},
	})

	dlq.AddCommand(&cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue one dead job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("POST", "/dlq/"+args[0]+"/retry", nil, nil)
			return report(status, raw, err)
		},
	})

	dlq.AddCommand(&cobra.Command{
		Use:   "retry-all",
		Short: "Requeue every dead job",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("POST", "/dlq/retry", nil, nil)
			return report(status, raw, err)
		},
	})

	return dlq
}

func newConfigCmd(newC func() *client) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Read or write server configuration",
	}

	cfg.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("GET", "/config", nil, nil)
			return report(status, raw, err)
		},
	})

	cfg.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Args:  cobra.ExactArgs(1),
		Short: "Show one configuration key",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("GET", "/config/"+args[0], nil, nil)
			return report(status, raw, err)
		},
	})

	cfg.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Args:  cobra.ExactArgs(2),
		Short: "Set one configuration key",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"key": args[0], "value": args[1]}
			status, raw, err := newC().do("POST", "/config", body, nil)
			return report(status, raw, err)
		},
	})

	return cfg
}

func newShutdownCmd(newC func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Request a graceful server shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, raw, err := newC().do("POST", "/shutdown", nil, nil)
			return report(status, raw, err)
		},
	}
}
