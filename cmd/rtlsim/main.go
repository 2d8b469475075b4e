// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

// Command rtlsim runs the bundled demo circuits and prints their traces.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "rtlsim",
	Short:         "build and simulate the demo netlists",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rtlsim:", err)
		os.Exit(1)
	}
}
