// Command queuectlctl is the operator CLI for a running queuectl
// server: every subcommand does nothing but build one HTTP request
// against the control API and print the JSON response, exiting 0 on a
// 2xx response and non-zero otherwise.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var cliErr *cliError
	if errors.As(err, &cliErr) {
		fmt.Fprintln(os.Stderr, cliErr.msg)
		os.Exit(cliErr.code)
	}
	fmt.Fprintln(os.Stderr, "queuectlctl:", err)
	os.Exit(1)
}
