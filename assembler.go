package main

import (
	"encoding/binary"
	"fmt"
)

// LabelID identifies a reservation in a CodeAssembler's label pool.
type LabelID int

// fixup records a not-yet-known relative offset that needs patching once
// its target label is resolved: the rel32 lives at byte pos in the
// buffer, counted from the end of the 4-byte field itself, the way x86
// CALL/Jcc encode it. ARM64 branches do not use this; that backend
// patches its own (see arm64Fixup).
type fixup struct {
	pos    int
	label  LabelID
	instrEnd int
}

// CodeAssembler accumulates emitted machine code and resolves forward
// and backward jumps between Loop start/end and the function prologue.
// The discipline is reserve, emit, resolve, link, encode: labels must be
// reserved before anything references them, every label a fixup refers
// to must be resolved before link (the backpatch pass), and encode only
// runs after link. A reserved label nothing refers to may stay
// unresolved.
type CodeAssembler struct {
	buf     []byte
	labels  []int // offset, or -1 if unresolved
	fixups  []fixup
}

// NewCodeAssembler returns an empty assembler.
func NewCodeAssembler() *CodeAssembler {
	return &CodeAssembler{}
}

// ReserveLabel allocates a new label with no offset yet.
func (a *CodeAssembler) ReserveLabel() LabelID {
	a.labels = append(a.labels, -1)
	return LabelID(len(a.labels) - 1)
}

// Resolve fixes a previously reserved label to the current end of the
// buffer. It is an error to resolve the same label twice.
func (a *CodeAssembler) Resolve(label LabelID) error {
	if int(label) < 0 || int(label) >= len(a.labels) {
		return fmt.Errorf("resolve: invalid label %d", label)
	}
	if a.labels[label] != -1 {
		return fmt.Errorf("resolve: label %d already resolved", label)
	}
	a.labels[label] = len(a.buf)
	return nil
}

// Emit appends raw bytes to the buffer and returns their starting offset.
func (a *CodeAssembler) Emit(b []byte) int {
	off := len(a.buf)
	a.buf = append(a.buf, b...)
	return off
}

// EmitRel32Fixup appends a placeholder rel32 field for a branch/call to
// label, to be patched by Link, and returns the offset the field was
// written at.
func (a *CodeAssembler) EmitRel32Fixup(label LabelID) int {
	pos := a.Emit([]byte{0, 0, 0, 0})
	a.fixups = append(a.fixups, fixup{pos: pos, label: label, instrEnd: pos + 4})
	return pos
}

// LabelOffset returns a resolved label's byte offset. Used by backends
// (ARM64) whose branch encoding embeds the displacement directly in the
// instruction word rather than as a trailing rel32 field, so they patch
// it themselves instead of going through EmitRel32Fixup/Link.
func (a *CodeAssembler) LabelOffset(label LabelID) (int, error) {
	if int(label) < 0 || int(label) >= len(a.labels) {
		return 0, fmt.Errorf("label offset: invalid label %d", label)
	}
	if a.labels[label] == -1 {
		return 0, fmt.Errorf("label offset: label %d not yet resolved", label)
	}
	return a.labels[label], nil
}

// PatchUint32 overwrites 4 bytes at pos, for backends patching their own
// branch immediates after all labels are resolved.
func (a *CodeAssembler) PatchUint32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(a.buf[pos:pos+4], v)
}

// Offset returns the current length of the buffer, i.e. the offset the
// next emitted byte will land at.
func (a *CodeAssembler) Offset() int {
	return len(a.buf)
}

// Link patches every recorded rel32 fixup against its now-resolved
// label and returns the final byte size. It is an error to call Link
// while any label referenced by a fixup remains unresolved.
func (a *CodeAssembler) Link() (int, error) {
	for _, f := range a.fixups {
		if int(f.label) < 0 || int(f.label) >= len(a.labels) {
			return 0, fmt.Errorf("link: invalid label %d", f.label)
		}
		target := a.labels[f.label]
		if target == -1 {
			return 0, fmt.Errorf("link: label %d never resolved", f.label)
		}
		rel := int32(target - f.instrEnd)
		binary.LittleEndian.PutUint32(a.buf[f.pos:f.pos+4], uint32(rel))
	}
	return len(a.buf), nil
}

// Encode returns the finished byte buffer. Call only after Link.
func (a *CodeAssembler) Encode() []byte {
	return a.buf
}
