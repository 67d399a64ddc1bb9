package main

import "fmt"

// CodeEmitter is the architecture-neutral surface the IR walker drives:
// one method per IR node kind plus the function prologue/epilogue and
// loop label plumbing. Adding an architecture means implementing this
// interface once; the IR walker in Generate never switches on arch
// itself.
type CodeEmitter interface {
	// SetBounds configures the inline safe-mode bounds check, in cells
	// relative to the cursor's starting position (low is always
	// -memoryOffset, high always size-memoryOffset). Both are known at
	// generation time even though the tape's runtime address isn't.
	SetBounds(low, high int32)

	// Prologue emits the function entry. safe and profiling are
	// independent: safe gates the inline bounds check, profiling gates
	// the heartbeat-slot write in DebugLabel. Either one on its own
	// still needs the tape-base register materialized, so Prologue
	// takes both rather than deriving one from the other.
	Prologue(safe, profiling bool)
	Epilogue()

	MovePtr(count int32)
	AddVal(count, offset int32)
	SetConst(value, offset int32)
	Mul(multiplier, src, dst int32)
	CopyCell(src, dst int32)
	Output(offset int32)
	Input(offset int32)

	// LoopStart/LoopEnd bracket a Loop's body: LoopStart reserves the
	// two labels (top-of-loop and after-loop), resolves top-of-loop and
	// emits the entry test; LoopEnd emits the backward branch and
	// resolves after-loop.
	LoopStart() (top, after LabelID)
	LoopEnd(top, after LabelID)

	// DebugLabel is emitted once per source-mapped node when profiling
	// is enabled: it records the current code offset against n in the
	// debug map and writes n's label id into the heartbeat PC slot.
	DebugLabel(n *Node)

	// Finish links every outstanding fixup and returns the final bytes.
	Finish() ([]byte, error)
}

// NewCodeEmitter returns the CodeEmitter for the current host's
// architecture. Generation always targets the host: this is an
// in-process JIT, not a cross compiler, so there is no separate target
// selection surface the way an ahead-of-time compiler would need.
func NewCodeEmitter(arch Arch, debugMap *DebugMap) (CodeEmitter, error) {
	switch arch {
	case ArchX86_64:
		return newX86_64Emitter(debugMap), nil
	case ArchARM64:
		return newARM64Emitter(debugMap), nil
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", arch)
	}
}

// Generate walks prog and drives e to emit a single entry function body
// that, laid end to end, implements the whole program: prologue, every
// top-level node in order, epilogue. Loop recursion happens through
// genNode so nested loops are handled uniformly.
func Generate(e CodeEmitter, prog []*Node, safe, profiling bool) ([]byte, error) {
	e.Prologue(safe, profiling)
	for _, n := range prog {
		genNode(e, n, profiling)
	}
	e.Epilogue()
	return e.Finish()
}

func genNode(e CodeEmitter, n *Node, profiling bool) {
	if profiling {
		e.DebugLabel(n)
	}
	switch n.Kind {
	case KindMovePtr:
		e.MovePtr(n.Count)
	case KindAddVal:
		e.AddVal(n.Count, n.Offset)
	case KindSetConst:
		e.SetConst(n.Value, n.Offset)
	case KindMul:
		e.Mul(n.Multiplier, n.SrcOffset, n.DstOffset)
	case KindCopyCell:
		e.CopyCell(n.SrcOffset, n.DstOffset)
	case KindOutput:
		e.Output(n.Offset)
	case KindInput:
		e.Input(n.Offset)
	case KindLoop:
		top, after := e.LoopStart()
		for _, c := range n.Body {
			genNode(e, c, profiling)
		}
		e.LoopEnd(top, after)
	}
}
