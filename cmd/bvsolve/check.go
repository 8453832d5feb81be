package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/bvsolve"
	"github.com/benbjohnson/bvsolve/bitblast"
	"github.com/benbjohnson/bvsolve/smtlib"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CheckCommand represents a command for checking SMT-LIB input.
type CheckCommand struct {
	ConfigPath     string
	ArrayMode      string
	NoSolver       bool
	Timeout        time.Duration
	MaxRefinements int
	Verbose        bool
	Dump           bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewCheckCommand returns a new instance of CheckCommand.
func NewCheckCommand() *CheckCommand {
	return &CheckCommand{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Command returns the cobra command bound to cmd's options.
func (cmd *CheckCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "check [file]",
		Short: "check queries in an SMT-LIB file",
		Long: `
Check reads SMT-LIB commands from a file, or from stdin if no file is given,
and prints the result of every check-sat and query command.`[1:],
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return cmd.Run(c.Context(), path, c.Flags().Changed)
		},
	}

	fs := c.Flags()
	fs.StringVar(&cmd.ConfigPath, "config", "", "TOML configuration file")
	fs.StringVar(&cmd.ArrayMode, "array-mode", "", "array lowering: abstract, lazy or eager")
	fs.BoolVar(&cmd.NoSolver, "no-solver", false, "print simplified queries without solving")
	fs.DurationVar(&cmd.Timeout, "timeout", 0, "time limit for each SAT call")
	fs.IntVar(&cmd.MaxRefinements, "max-refinements", 0, "refinement rounds per query, 0 for no limit")
	fs.BoolVarP(&cmd.Verbose, "verbose", "v", false, "enable debug logging")
	fs.BoolVar(&cmd.Dump, "dump", false, "dump results and statistics to stderr")
	return c
}

// Run executes the check command. changed reports whether a flag was set on
// the command line; set flags override the configuration file.
func (cmd *CheckCommand) Run(ctx context.Context, path string, changed func(name string) bool) error {
	config, err := cmd.config(changed)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(cmd.Stderr)
	level, _ := logrus.ParseLevel(config.LogLevel)
	logger.SetLevel(level)

	r := cmd.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	c := bvsolve.NewContext(bvsolve.NewStore(), config)
	c.Logger = logger
	c.NewSolver = func() bvsolve.Solver { return bitblast.NewSolver() }

	in := smtlib.NewInterpreter(c, cmd.Stdout)
	in.NoSolver = cmd.NoSolver
	if cmd.Dump {
		in.OnResult = func(q *bvsolve.Term, result *bvsolve.Result) {
			spew.Fdump(cmd.Stderr, q.String(), result.Status.String(), result.Stats)
		}
	}

	if err := in.Run(ctx, r); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"queries":     c.Stats().QueryN,
		"sat_calls":   c.Stats().SolveN,
		"sat_time":    c.Stats().SolveTime,
		"refinements": c.Stats().RefinementN,
	}).Debug("done")
	if cmd.Dump {
		spew.Fdump(cmd.Stderr, in.Declarations(), c.Stats())
	}
	return nil
}

// config loads the configuration file, if any, and applies flag overrides.
func (cmd *CheckCommand) config(changed func(name string) bool) (bvsolve.Config, error) {
	config := bvsolve.DefaultConfig()
	if cmd.ConfigPath != "" {
		var err error
		if config, err = bvsolve.LoadConfig(cmd.ConfigPath); err != nil {
			return config, err
		}
	}

	if changed("array-mode") {
		mode, err := bvsolve.ParseArrayMode(cmd.ArrayMode)
		if err != nil {
			return config, err
		}
		config.ArrayMode = mode
	}
	if changed("timeout") {
		config.SATTimeoutMS = int(cmd.Timeout / time.Millisecond)
	}
	if changed("max-refinements") {
		config.MaxRefinements = cmd.MaxRefinements
	}
	if cmd.Verbose {
		config.LogLevel = "debug"
	}
	return config, errors.Wrap(config.Validate(), "config")
}
