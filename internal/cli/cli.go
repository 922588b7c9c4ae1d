// Package cli holds the flag handling shared by the littlefs commands.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/blockdev"
	"github.com/brettbedarf/littlefs-utils/config"
	"github.com/brettbedarf/littlefs-utils/internal/util"
)

// Version is reported by -v/--version.
const Version = "1.0.0"

// Exit codes returned by the commands' run functions.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Command is a flag set preloaded with the options every tool accepts.
// Tools register their own flags on Set before calling Parse.
type Command struct {
	Set *flag.FlagSet

	name   string
	usage  string
	stderr io.Writer

	Image           string
	ConfigPath      string
	Verbose         int
	LfsVersion      uint
	BlockSize       uint
	ReadSize        uint
	ProgSize        uint
	FullBlockAccess bool

	help        bool
	showVersion bool
}

// New creates a Command. usage is the synopsis printed after the tool name.
func New(name, usage string, stderr io.Writer) *Command {
	c := &Command{
		Set:    flag.NewFlagSet(name, flag.ContinueOnError),
		name:   name,
		usage:  usage,
		stderr: stderr,
	}
	set := c.Set
	set.SetOutput(stderr)

	set.BoolVar(&c.help, "help", false, "produce help message")
	set.BoolVar(&c.help, "h", false, "--help (shorthand)")
	set.BoolVar(&c.showVersion, "version", false, "show version")
	set.BoolVar(&c.showVersion, "v", false, "--version (shorthand)")
	set.StringVar(&c.Image, "input-file", "", "littlefs image file")
	set.StringVar(&c.Image, "i", "", "--input-file (shorthand)")
	set.StringVar(&c.ConfigPath, "config", "", "Path to a yaml or json config file")
	set.IntVar(&c.Verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace)")
	set.UintVar(&c.LfsVersion, "littlefs-version", uint(config.DefaultVersion), "littlefs version to use")
	set.UintVar(&c.LfsVersion, "l", uint(config.DefaultVersion), "--littlefs-version (shorthand)")
	set.UintVar(&c.BlockSize, "block-size", config.DefaultBlockSize, "filesystem block size")
	set.UintVar(&c.BlockSize, "b", config.DefaultBlockSize, "--block-size (shorthand)")
	set.UintVar(&c.ReadSize, "read-size", config.DefaultReadSize, "filesystem read size")
	set.UintVar(&c.ReadSize, "r", config.DefaultReadSize, "--read-size (shorthand)")
	set.UintVar(&c.ProgSize, "prog-size", config.DefaultProgSize, "filesystem prog size")
	set.UintVar(&c.ProgSize, "p", config.DefaultProgSize, "--prog-size (shorthand)")
	set.BoolVar(&c.FullBlockAccess, "full-block-access", false,
		"Allow device accesses ending exactly on a block boundary")

	set.Usage = func() {
		fmt.Fprintf(set.Output(), "Usage: %s %s\n\nAllowed options:\n", c.name, c.usage)
		set.PrintDefaults()
	}
	return c
}

// Parse parses args. When done is true the caller returns code immediately:
// help and version were printed to stdout, or the arguments were unusable.
func (c *Command) Parse(args []string, stdout io.Writer) (code int, done bool) {
	if len(args) == 0 {
		c.Set.Usage()
		return ExitUsage, true
	}
	if err := c.Set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK, true
		}
		return ExitUsage, true
	}
	if c.help {
		c.Set.SetOutput(stdout)
		c.Set.Usage()
		return ExitOK, true
	}
	if c.showVersion {
		fmt.Fprintf(stdout, "%s %s\n", c.name, Version)
		return ExitOK, true
	}
	if c.Image == "" {
		fmt.Fprintf(c.Set.Output(), "%s: the option '--input-file' is required but missing\n", c.name)
		return ExitUsage, true
	}
	return 0, false
}

// IsSet reports whether any of the named flags was given on the command line.
func (c *Command) IsSet(names ...string) bool {
	set := false
	c.Set.Visit(func(f *flag.Flag) {
		for _, n := range names {
			if f.Name == n {
				set = true
			}
		}
	})
	return set
}

// Config loads the optional config file and applies explicitly given flags
// on top of it, then initializes logging to stderr at the resulting level.
// The returned override records everything that did not come from the
// defaults.
func (c *Command) Config() (*config.Config, *config.ConfigOverride, error) {
	override := &config.ConfigOverride{}
	if c.ConfigPath != "" {
		var err error
		if override, err = config.LoadConfigOverrideFile(c.ConfigPath); err != nil {
			util.InitializeLogger(config.DefaultLogLvl, c.stderr)
			return nil, nil, fmt.Errorf("loading config %s: %w", c.ConfigPath, err)
		}
	}

	if c.IsSet("verbose") {
		override.LogLvl = util.Pointer(c.Verbose)
	}
	for _, f := range []struct {
		long, short string
		v           uint
		dst         **uint32
	}{
		{"littlefs-version", "l", c.LfsVersion, &override.Version},
		{"block-size", "b", c.BlockSize, &override.BlockSize},
		{"read-size", "r", c.ReadSize, &override.ReadSize},
		{"prog-size", "p", c.ProgSize, &override.ProgSize},
	} {
		if !c.IsSet(f.long, f.short) {
			continue
		}
		v, err := Uint32(f.long, f.v)
		if err != nil {
			util.InitializeLogger(config.DefaultLogLvl, c.stderr)
			return nil, nil, err
		}
		*f.dst = util.Pointer(v)
	}
	if c.IsSet("full-block-access") {
		override.FullBlockAccess = util.Pointer(c.FullBlockAccess)
	}

	cfg := config.NewConfig(override)
	util.InitializeLogger(cfg.LogLvl, c.stderr)
	return cfg, override, nil
}

// DeviceOptions returns the block device options selected by cfg.
func DeviceOptions(cfg *config.Config) []blockdev.Option {
	if cfg.FullBlockAccess {
		return []blockdev.Option{blockdev.WithFullBlockAccess()}
	}
	return nil
}

// Fail logs err and prints it to stderr, returning the error exit code.
func Fail(stderr io.Writer, name string, err error) int {
	logger := util.GetLogger("main")
	logger.Error().Err(err).Msg("Command failed")
	fmt.Fprintf(stderr, "%s: %v\n", name, err)
	if errors.Is(err, littlefs.ErrOutOfRange) {
		fmt.Fprintf(stderr, "%s: the engine accessed a whole block; retry with --full-block-access\n", name)
	}
	return ExitError
}

// Uint32 narrows a uint flag value, rejecting values that do not fit.
func Uint32(flagName string, v uint) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: --%s %d is out of range", littlefs.ErrInvalidConfig, flagName, v)
	}
	return uint32(v), nil
}
