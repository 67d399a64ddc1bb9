package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/xyproto/env/v2"
)

// Default tape and profiling parameters. Overridable by environment
// variables, which are in turn overridable by explicit flags.
const (
	defaultMemorySize   = 65536
	defaultMemoryOffset = 4096
	defaultProfileHz    = 1000
	maxNestingDepth     = 1000
)

// Options holds every knob the driver needs, assembled from environment
// fallbacks and then CLI flags (flags win when both are set).
type Options struct {
	SourcePath   string
	Debug        bool
	NoOptimize   bool
	Timing       bool
	Unsafe       bool
	ProfilePath  string
	MemorySize   int
	MemoryOffset int
	ProfileHz    int
}

// newFlagSet builds the flag set shared by ParseOptions and PrintUsage,
// so the usage text and the parser can never drift apart.
func newFlagSet(opts *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("bf", flag.ContinueOnError)
	fs.BoolVar(&opts.Debug, "debug", false, "dump the IR after optimization")
	fs.BoolVar(&opts.NoOptimize, "no-optimize", false, "skip the optimizer and run the raw IR")
	fs.BoolVar(&opts.Timing, "timing", false, "print phase timings to stderr")
	fs.BoolVar(&opts.Unsafe, "unsafe", opts.Unsafe, "elide inline bounds checks (guard pages still apply)")
	fs.StringVar(&opts.ProfilePath, "profile", "", "sample the running program and write a folded stack file here")
	fs.IntVar(&opts.MemorySize, "memory", opts.MemorySize, "tape size in bytes")
	fs.IntVar(&opts.MemoryOffset, "memory-offset", opts.MemoryOffset, "starting cursor offset into the tape")
	fs.IntVar(&opts.ProfileHz, "profile-hz", opts.ProfileHz, "sampling rate in Hz when --profile is set")
	return fs
}

// ParseOptions reads BF_MEMORY, BF_MEMORY_OFFSET, BF_PROFILE_HZ and
// BF_UNSAFE as defaults, then lets flag.Parse override them from argv.
func ParseOptions(args []string) (*Options, error) {
	opts := &Options{
		MemorySize:   env.IntOr("BF_MEMORY", defaultMemorySize),
		MemoryOffset: env.IntOr("BF_MEMORY_OFFSET", defaultMemoryOffset),
		ProfileHz:    env.IntOr("BF_PROFILE_HZ", defaultProfileHz),
		Unsafe:       env.BoolOr("BF_UNSAFE", false),
	}

	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one program file, got %d", fs.NArg())
	}
	opts.SourcePath = fs.Arg(0)

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) validate() error {
	if o.MemorySize <= 0 {
		return fmt.Errorf("invalid --memory %d: must be positive", o.MemorySize)
	}
	if o.MemoryOffset < 0 || o.MemoryOffset >= o.MemorySize {
		return fmt.Errorf("invalid --memory-offset %d: must satisfy 0 <= offset < memory (%d)", o.MemoryOffset, o.MemorySize)
	}
	if o.ProfilePath != "" && o.ProfileHz <= 0 {
		return fmt.Errorf("invalid --profile-hz %d: must be positive", o.ProfileHz)
	}
	return nil
}

// PrintUsage writes the full flag listing to stdout, for -h/--help.
// Unlike a parse error's usage hint (stderr, non-zero exit), an explicit
// help request is success: it writes to stdout and the caller exits 0.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: bf [flags] <program-file>")
	fmt.Fprintln(w)
	fs := newFlagSet(&Options{})
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// fatalf prints a diagnostic and exits with the top-level CLI's
// standard failure code.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
