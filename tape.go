//go:build linux || darwin

package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sliceAddr returns the address of a byte slice's backing array.
func sliceAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// heartbeatSlotOffset is the additional pad, in bytes, reserved behind
// the lowest legal cursor offset for the profiler's heartbeat slot: the
// word the code generator writes the current node's label id into on
// every source-mapped instruction, which the sampling goroutine polls
// in place of a signal-time program-counter read. It must not be 0: the
// lowest legal offset (lowBound, i.e. -memory_offset) is itself a valid
// cell, so the slot has to sit strictly further back.
const heartbeatSlotOffset = 32

const pageSize = 4096

// Tape is the JIT's guard-paged working memory: a single PROT_READ|
// PROT_WRITE region (tape cells plus the heartbeat pad) flanked by two
// PROT_NONE pages. An access that leaves the read-write region turns
// into a SIGSEGV at the exact faulting instruction, even when the inline
// bounds check (itself skippable via --unsafe) is absent. Accesses that
// stray only into the heartbeat pad below cell 0, or into the slack
// left by rounding pad+size up to a whole page, do not fault.
type Tape struct {
	region   []byte // the full mmap, including guard pages
	cellBase uintptr
	cursor0  uintptr // address handed to the compiled entry point
	size     int
}

// AllocateTape reserves guard_page + pad + size + guard_page bytes and
// returns a Tape whose Entry() is the address the JIT's cursor starts
// at: the tape's logical byte 0 offset by memoryOffset cells.
func AllocateTape(size, memoryOffset int) (*Tape, error) {
	pad := heartbeatSlotOffset + 16 // round the pad up past the slot itself
	rw := roundUpPage(pad + size)
	total := pageSize + rw + pageSize

	region, err := unix.Mmap(-1, 0, total, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("allocate tape: mmap reservation: %w", err)
	}

	rwStart := pageSize
	if err := unix.Mprotect(region[rwStart:rwStart+rw], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("allocate tape: mprotect rw region: %w", err)
	}

	base := sliceAddr(region) + uintptr(rwStart) + uintptr(pad)
	return &Tape{
		region:   region,
		cellBase: base,
		cursor0:  base + uintptr(memoryOffset),
		size:     size,
	}, nil
}

// Entry is the uintptr passed as the compiled function's single
// argument: the starting cursor position.
func (t *Tape) Entry() uintptr {
	return t.cursor0
}

// HeartbeatSlotAddr is the address the profiler polls; it must match
// what the emitters compute as cursor0's lowBound - heartbeatSlotOffset.
func (t *Tape) HeartbeatSlotAddr() uintptr {
	return t.cellBase - heartbeatSlotOffset
}

// Bytes exposes the logical tape contents for tests and for --debug
// tooling that wants a post-mortem dump; it does not include the guard
// pages or heartbeat pad.
func (t *Tape) Bytes() []byte {
	off := int(t.cellBase - sliceAddr(t.region))
	return t.region[off : off+t.size]
}

// Close releases the whole reservation, guard pages included.
func (t *Tape) Close() error {
	return unix.Munmap(t.region)
}

func roundUpPage(n int) int {
	return ((n + pageSize - 1) / pageSize) * pageSize
}
