package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by the linker.
var (
	BuildVersion = "dev"
	BuildCommit  string
	BuildTime    string
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-8s %s\n", "version", BuildVersion)
			if BuildCommit != "" {
				fmt.Fprintf(w, "%-8s %s\n", "commit", BuildCommit)
			}
			if BuildTime != "" {
				fmt.Fprintf(w, "%-8s %s\n", "built", BuildTime)
			}
		},
	}
}
