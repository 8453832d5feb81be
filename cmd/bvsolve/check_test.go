package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benbjohnson/bvsolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
(declare-const x (_ BitVec 8))
(declare-const A (Array (_ BitVec 8) (_ BitVec 8)))
(assert (bvult x #x10))
(query (bvult x #x20))
(query (= (select A x) (select A #x00)))
(check-sat)
`

// newTestCheckCommand returns a command reading stdin from s.
func newTestCheckCommand(s string) (*CheckCommand, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cmd := NewCheckCommand()
	cmd.Stdin = strings.NewReader(s)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	return cmd, &stdout, &stderr
}

func TestCheckCommand_Run(t *testing.T) {
	t.Run("Stdin", func(t *testing.T) {
		cmd, stdout, _ := newTestCheckCommand(testScript)
		c := cmd.Command()
		c.SetArgs([]string{})
		c.SetOut(stdout)
		require.NoError(t, c.ExecuteContext(context.Background()))
		assert.Equal(t, "valid\ninvalid\nsat\n", stdout.String())
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "input.smt2")
		require.NoError(t, os.WriteFile(path, []byte(testScript), 0666))

		for _, mode := range []string{"abstract", "lazy", "eager"} {
			t.Run(mode, func(t *testing.T) {
				cmd, stdout, _ := newTestCheckCommand("")
				c := cmd.Command()
				c.SetArgs([]string{"--array-mode", mode, "--max-refinements", "16", path})
				require.NoError(t, c.ExecuteContext(context.Background()))
				assert.Equal(t, "valid\ninvalid\nsat\n", stdout.String())
			})
		}
	})

	t.Run("NoSolver", func(t *testing.T) {
		cmd, stdout, _ := newTestCheckCommand("(declare-const p Bool)\n(assert p)\n(query p)")
		c := cmd.Command()
		c.SetArgs([]string{"--no-solver"})
		require.NoError(t, c.ExecuteContext(context.Background()))
		assert.Equal(t, "false\n", stdout.String())
	})

	t.Run("Dump", func(t *testing.T) {
		cmd, _, stderr := newTestCheckCommand("(declare-const p Bool)\n(query (or p (not p)))")
		c := cmd.Command()
		c.SetArgs([]string{"--dump", "-v"})
		require.NoError(t, c.ExecuteContext(context.Background()))
		assert.Contains(t, stderr.String(), "valid")
		assert.Contains(t, stderr.String(), "QueryN")
		assert.Contains(t, stderr.String(), "level=debug")
	})

	t.Run("ErrMissingFile", func(t *testing.T) {
		cmd, _, _ := newTestCheckCommand("")
		err := cmd.Run(context.Background(), filepath.Join(t.TempDir(), "missing.smt2"), func(string) bool { return false })
		assert.True(t, os.IsNotExist(err), "unexpected error: %v", err)
	})

	t.Run("ErrSyntax", func(t *testing.T) {
		cmd, _, _ := newTestCheckCommand("(check-sat")
		err := cmd.Run(context.Background(), "", func(string) bool { return false })
		assert.EqualError(t, err, "line 1: unterminated list")
	})
}

func TestCheckCommand_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bvsolve.toml")
	require.NoError(t, os.WriteFile(path, []byte("array_mode = \"lazy\"\nmax_refinements = 5\n"), 0666))

	t.Run("File", func(t *testing.T) {
		cmd := NewCheckCommand()
		cmd.ConfigPath = path
		config, err := cmd.config(func(string) bool { return false })
		require.NoError(t, err)
		assert.Equal(t, bvsolve.ArrayModeLazy, config.ArrayMode)
		assert.Equal(t, 5, config.MaxRefinements)
	})

	// Flags set on the command line win over the file.
	t.Run("Override", func(t *testing.T) {
		cmd := NewCheckCommand()
		c := cmd.Command()
		require.NoError(t, c.ParseFlags([]string{"--config", path, "--array-mode", "eager", "--timeout", "2s", "-v"}))

		config, err := cmd.config(c.Flags().Changed)
		require.NoError(t, err)
		assert.Equal(t, bvsolve.ArrayModeEager, config.ArrayMode)
		assert.Equal(t, 5, config.MaxRefinements)
		assert.Equal(t, 2000, config.SATTimeoutMS)
		assert.Equal(t, "debug", config.LogLevel)
	})

	t.Run("ErrArrayMode", func(t *testing.T) {
		cmd := NewCheckCommand()
		c := cmd.Command()
		require.NoError(t, c.ParseFlags([]string{"--array-mode", "fast"}))
		_, err := cmd.config(c.Flags().Changed)
		assert.Error(t, err)
	})

	t.Run("ErrNegative", func(t *testing.T) {
		cmd := NewCheckCommand()
		c := cmd.Command()
		require.NoError(t, c.ParseFlags([]string{"--max-refinements=-1"}))
		_, err := cmd.config(c.Flags().Changed)
		assert.EqualError(t, err, "config: max_refinements must be non-negative: -1")
	})
}

func TestNewRootCommand(t *testing.T) {
	var buf bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), BuildVersion)
}
