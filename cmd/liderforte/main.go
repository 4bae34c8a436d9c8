// Command liderforte imports cell data and runs readiness, eligibility and
// alert queries against the configured store.
package main

import (
	"fmt"
	"os"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "liderforte:", err)
		return 1
	}
	return 0
}
