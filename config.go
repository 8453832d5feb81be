package bvsolve

import (
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds the options of a Context.
type Config struct {
	// Array lowering and refinement policy.
	ArrayMode ArrayMode `toml:"array_mode"`

	// Enables the linear solver during preprocessing.
	WordLevelSolving bool `toml:"word_level_solving"`

	// Enables term rewriting. Substitution and constant folding always apply.
	Simplify bool `toml:"simplify"`

	// Maximum number of refinement rounds per query. Zero is unbounded.
	MaxRefinements int `toml:"max_refinements"`

	// Time limit for each SAT call, in milliseconds. Zero is unbounded.
	SATTimeoutMS int `toml:"sat_timeout_ms"`

	// Logging level name, as accepted by logrus.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ArrayMode:        ArrayModeAbstract,
		WordLevelSolving: true,
		Simplify:         true,
		LogLevel:         "info",
	}
}

// ArrayRefinement returns true if array reads are abstracted and refined on demand.
func (c Config) ArrayRefinement() bool { return c.ArrayMode != ArrayModeEager }

// EagerArrayAbstraction returns true if reads are lowered to if-then-else chains.
func (c Config) EagerArrayAbstraction() bool { return c.ArrayMode == ArrayModeEager }

// SATTimeout returns the per-call SAT time limit.
func (c Config) SATTimeout() time.Duration {
	return time.Duration(c.SATTimeoutMS) * time.Millisecond
}

// Validate returns an error if the configuration is unusable.
func (c Config) Validate() error {
	if c.MaxRefinements < 0 {
		return errors.Errorf("max_refinements must be non-negative: %d", c.MaxRefinements)
	} else if c.SATTimeoutMS < 0 {
		return errors.Errorf("sat_timeout_ms must be non-negative: %d", c.SATTimeoutMS)
	} else if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// LoadConfig reads a TOML configuration file. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	c, err := DecodeConfig(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// DecodeConfig reads a TOML configuration from r over the defaults.
func DecodeConfig(r io.Reader) (Config, error) {
	var other Config
	meta, err := toml.DecodeReader(r, &other)
	if err != nil {
		return Config{}, err
	}

	c := DefaultConfig()
	if meta.IsDefined("array_mode") {
		c.ArrayMode = other.ArrayMode
	}
	if meta.IsDefined("word_level_solving") {
		c.WordLevelSolving = other.WordLevelSolving
	}
	if meta.IsDefined("simplify") {
		c.Simplify = other.Simplify
	}
	if meta.IsDefined("max_refinements") {
		c.MaxRefinements = other.MaxRefinements
	}
	if meta.IsDefined("sat_timeout_ms") {
		c.SATTimeoutMS = other.SATTimeoutMS
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = other.LogLevel
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("unknown key: %s", undecoded[0])
	}
	return c, c.Validate()
}
