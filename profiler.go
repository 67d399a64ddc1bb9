package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Profiler samples a running program at a fixed rate and attributes
// each sample to an IR node for folded-stack output.
//
// It cannot do what a native profiler does — read the program counter
// out of the interrupted thread's ucontext from inside a SIGALRM
// handler — because that requires a handler written in, or reachable
// from, a language whose runtime lets arbitrary code run at signal
// time with access to the machine context; Go's runtime keeps that
// internal. Instead it keeps the timer-driven sampling cadence exactly
// (Setitimer driving real SIGALRM delivery) and substitutes a heartbeat
// slot: the code generator (see x86_64_codegen.go/arm64_codegen.go's
// DebugLabel) writes the current node's debug-map label id into a fixed
// tape-adjacent memory word on every source-mapped node it passes. The
// sampling goroutine — woken by signal.Notify, since a Go channel is all
// that's available outside a real signal handler — reads that word on
// each tick and resolves it through the debug map exactly as FindByPC
// would from a raw PC.
type Profiler struct {
	tape     *Tape
	debugMap *DebugMap
	prog     []*Node
	hz       int

	mu   samplesMap
	sigs chan os.Signal
	stop chan struct{}
	done chan struct{}
}

// samplesMap counts samples per label id. The sampling goroutine is the
// only writer; WriteFolded only runs after Stop, so no locking is
// needed despite the name.
type samplesMap map[uint32]int

// NewProfiler returns a Profiler that will sample tape's heartbeat slot
// at hz times per second once started. prog is the optimized program
// the running code was generated from, needed at output time to
// reconstruct each sampled node's enclosing-loop stack.
func NewProfiler(tape *Tape, debugMap *DebugMap, prog []*Node, hz int) *Profiler {
	return &Profiler{tape: tape, debugMap: debugMap, prog: prog, hz: hz, mu: samplesMap{}}
}

// Start arms the interval timer and begins sampling in the background.
func (p *Profiler) Start() error {
	interval := time.Second / time.Duration(p.hz)
	tv := unix.NsecToTimeval(interval.Nanoseconds())
	it := &unix.Itimerval{Interval: tv, Value: tv}
	if err := unix.Setitimer(unix.ITIMER_REAL, it, nil); err != nil {
		return fmt.Errorf("profiler: setitimer: %w", err)
	}

	p.sigs = make(chan os.Signal, 64)
	signal.Notify(p.sigs, unix.SIGALRM)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop()
	return nil
}

func (p *Profiler) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.sigs:
			p.sample()
		case <-p.stop:
			signal.Stop(p.sigs)
			return
		}
	}
}

func (p *Profiler) sample() {
	slot := (*uint32)(unsafe.Pointer(p.tape.HeartbeatSlotAddr()))
	id := atomic.LoadUint32(slot)
	e := p.debugMap.FindByLabel(id)
	if e == nil {
		return
	}
	e.Node.ProfileSamples++
	p.mu[id]++
}

// Stop disarms the timer and waits for the sampling goroutine to drain.
func (p *Profiler) Stop() {
	zero := &unix.Itimerval{}
	unix.Setitimer(unix.ITIMER_REAL, zero, nil)
	close(p.stop)
	<-p.done
}

// WriteFolded writes one "stack count" line per distinct sampled leaf
// node, sorted by stack for stable output. Loop nodes never emit a
// line of their own — a sample landing on one is dropped, since a loop
// only contributes its "@L:C LOOP" frame to the stack prefix of the
// nodes nested inside it.
func (p *Profiler) WriteFolded(w io.Writer) error {
	stacks := buildStacks(p.debugMap, p.prog)

	ids := make([]uint32, 0, len(p.mu))
	for id := range p.mu {
		if _, ok := stacks[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return stacks[ids[i]] < stacks[ids[j]] })

	for _, id := range ids {
		if _, err := fmt.Fprintf(w, "%s %d\n", stacks[id], p.mu[id]); err != nil {
			return err
		}
	}
	return nil
}

// buildStacks walks prog depth-first, maintaining a prefix of enclosing
// Loop frames in source order, and returns the full folded-stack string
// for every non-loop node — the shape the folded profile format wants:
// enclosing "@L:C LOOP" frames joined by ';', then the node's own
// "@L:C TAG" frame, with no leading ';' when there's no enclosing loop.
func buildStacks(debugMap *DebugMap, prog []*Node) map[uint32]string {
	stacks := map[uint32]string{}
	var walk func(nodes []*Node, prefix []string)
	walk = func(nodes []*Node, prefix []string) {
		for _, n := range nodes {
			frame := profileFrame(n)
			if n.Kind == KindLoop {
				walk(n.Body, append(append([]string{}, prefix...), frame))
				continue
			}
			id := debugMap.LabelFor(n)
			if len(prefix) == 0 {
				stacks[id] = frame
			} else {
				stacks[id] = strings.Join(prefix, ";") + ";" + frame
			}
		}
	}
	walk(prog, nil)
	return stacks
}

// profileFrame renders one folded-stack frame for n.
func profileFrame(n *Node) string {
	return fmt.Sprintf("@%d:%d %s", n.Line, n.Column, profileTag(n.Kind))
}

// profileTag maps a NodeKind to the folded profile format's fixed tag
// set, distinct from NodeKind.String()'s IR-dump spelling.
func profileTag(k NodeKind) string {
	switch k {
	case KindMovePtr:
		return "MOVE_PTR"
	case KindAddVal:
		return "ADD_VAL"
	case KindOutput:
		return "OUTPUT"
	case KindInput:
		return "INPUT"
	case KindLoop:
		return "LOOP"
	case KindSetConst:
		return "SET_CONST"
	case KindMul:
		return "MUL"
	case KindCopyCell:
		return "COPY_CELL"
	default:
		return "UNKNOWN"
	}
}
