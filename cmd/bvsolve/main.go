package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand returns the bvsolve command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bvsolve",
		Short: "bvsolve is a decision procedure for bitvector and array formulas",
		Long: `
Bvsolve checks whether queries over fixed-width bitvectors and arrays are
valid under a set of assertions. Input is a subset of SMT-LIB 2.`[1:],
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	root.AddCommand(NewCheckCommand().Command())
	root.AddCommand(newVersionCommand())
	return root
}
