package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SealedCode is a finished, executable mapping of JIT output: the code
// is written into an RW mapping and only re-protected to RX once, so
// there is never a window where the same page is both writable and
// executable (W^X) and never a way to write into it again afterward —
// Call only ever reads it as instructions.
type SealedCode struct {
	region []byte
	entry  entryFunc
}

// Map copies code into a fresh page-aligned mapping, seals it RX, and
// returns a SealedCode ready to Call.
func Map(code []byte) (*SealedCode, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("map: empty code")
	}
	size := roundUpPage(len(code))
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("map: mmap: %w", err)
	}
	copy(region, code)
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("map: mprotect rx: %w", err)
	}
	return &SealedCode{region: region, entry: makeEntry(sliceAddr(region))}, nil
}

// Call invokes the sealed code as fn(tapePtr) -> i32.
func (s *SealedCode) Call(tapePtr uintptr) int32 {
	return s.entry(tapePtr)
}

// Close unmaps the executable region. Callers must not retain any
// SealedCode value (or anything derived from Call) past Close.
func (s *SealedCode) Close() error {
	return unix.Munmap(s.region)
}

// entryFunc is the compiled program's calling convention: one uintptr
// argument (the tape cursor start), one int32 result (unused by this
// language but kept for headroom and symmetry with a typical
// JIT-entry-point signature).
type entryFunc func(uintptr) int32

// funcval mirrors the internal layout the Go runtime gives every func
// value: a pointer to a small struct whose first word is the code
// address to jump to (closures add captured variables after it; a
// zero-argument top-level func has nothing else). There's no supported
// way to build a func value pointing at foreign machine code, so this
// fabricates one directly — the same technique small pure-Go JIT
// libraries use to invoke generated code without cgo or a hand-written
// assembly trampoline. It relies on an internal representation, not a
// documented guarantee, which is the trade this whole component makes
// in exchange for staying cgo-free.
type funcval struct {
	fn uintptr
}

// makeEntry wraps a raw code address as a callable entryFunc.
func makeEntry(codeAddr uintptr) entryFunc {
	fv := &funcval{fn: codeAddr}
	return *(*entryFunc)(unsafe.Pointer(&fv))
}
