package main

import (
	"fmt"
	"os"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
