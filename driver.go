package main

import (
	"fmt"
	"os"
	"time"
)

// Run executes the full pipeline for one program file: Parse, Optimize,
// Generate, Map Executable, Allocate Tape, (Profile), Execute. It
// returns the compiled program's result code and any error that
// prevented execution — a parse error, a config error, or a failure
// setting up the JIT's memory. A SIGSEGV the program triggers by
// running off the tape (safe or unsafe mode) is not something this
// function can observe or recover: it is a fault in this process, by
// design (see tape.go).
func Run(opts *Options) (int32, error) {
	phase := newPhaseTimer(opts.Timing)

	src, err := os.ReadFile(opts.SourcePath)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", opts.SourcePath, err)
	}
	phase.mark("read source")

	tokens := Tokenize(src)
	prog, err := Parse(tokens)
	if err != nil {
		return 0, fmt.Errorf("parse error: %w", err)
	}
	phase.mark("parse")

	if !opts.NoOptimize {
		prog = Optimize(prog)
	}
	phase.mark("optimize")

	if opts.Debug {
		fmt.Fprintln(os.Stderr, "-> IR after optimization")
		fmt.Fprint(os.Stderr, DumpProgram(prog))
	}

	arch, err := HostArch()
	if err != nil {
		return 0, err
	}

	debugMap := NewDebugMap()
	emitter, err := NewCodeEmitter(arch, debugMap)
	if err != nil {
		return 0, err
	}

	lowBound := int32(-opts.MemoryOffset)
	highBound := int32(opts.MemorySize - opts.MemoryOffset)
	emitter.SetBounds(lowBound, highBound)

	profiling := opts.ProfilePath != ""
	code, err := Generate(emitter, prog, !opts.Unsafe, profiling)
	if err != nil {
		return 0, fmt.Errorf("code generation: %w", err)
	}
	debugMap.ResolveAll()
	phase.mark("generate")

	if opts.Debug {
		fmt.Fprintln(os.Stderr, "-> emitted code")
		fmt.Fprint(os.Stderr, hexDump(code))
	}

	sealed, err := Map(code)
	if err != nil {
		return 0, fmt.Errorf("mapping executable memory: %w", err)
	}
	defer sealed.Close()
	phase.mark("map executable")

	tape, err := AllocateTape(opts.MemorySize, opts.MemoryOffset)
	if err != nil {
		return 0, fmt.Errorf("allocating tape: %w", err)
	}
	defer tape.Close()
	phase.mark("allocate tape")

	var profiler *Profiler
	if profiling {
		profiler = NewProfiler(tape, debugMap, prog, opts.ProfileHz)
		if err := profiler.Start(); err != nil {
			return 0, fmt.Errorf("starting profiler: %w", err)
		}
	}

	result := sealed.Call(tape.Entry())
	phase.mark("execute")

	if profiler != nil {
		profiler.Stop()
		f, err := os.Create(opts.ProfilePath)
		if err != nil {
			return result, fmt.Errorf("writing profile: %w", err)
		}
		defer f.Close()
		if err := profiler.WriteFolded(f); err != nil {
			return result, fmt.Errorf("writing profile: %w", err)
		}
	}

	return result, nil
}

// phaseTimer prints "-> phase (Nms)" banners to stderr when --timing is
// set, one per pipeline stage.
type phaseTimer struct {
	enabled bool
	last    time.Time
}

func newPhaseTimer(enabled bool) *phaseTimer {
	return &phaseTimer{enabled: enabled, last: time.Now()}
}

func (p *phaseTimer) mark(name string) {
	if !p.enabled {
		return
	}
	now := time.Now()
	fmt.Fprintf(os.Stderr, "-> %s (%s)\n", name, now.Sub(p.last))
	p.last = now
}

// hexDump renders code in the conventional 16-bytes-per-line,
// offset-prefixed shape.
func hexDump(code []byte) string {
	var b []byte
	for off := 0; off < len(code); off += 16 {
		end := off + 16
		if end > len(code) {
			end = len(code)
		}
		line := fmt.Sprintf("%08x  ", off)
		for i := off; i < end; i++ {
			line += fmt.Sprintf("%02x ", code[i])
		}
		b = append(b, []byte(line+"\n")...)
	}
	return string(b)
}
