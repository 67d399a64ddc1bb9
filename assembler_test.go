package main

import "testing"

func TestAssemblerRel32Fixup(t *testing.T) {
	a := NewCodeAssembler()
	target := a.ReserveLabel()
	a.Emit([]byte{0x90}) // nop, so the jump isn't at offset 0
	a.EmitRel32Fixup(target)
	a.Emit([]byte{0x90, 0x90, 0x90})
	if err := a.Resolve(target); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := a.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	buf := a.Encode()
	// The fixup field sits right after the first nop, at offset 1.
	// instrEnd = 5, target = resolve-time offset = 8 (1 nop + 4 fixup bytes + 3 nops).
	got := int32(uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16 | uint32(buf[4])<<24)
	want := int32(8 - 5)
	if got != want {
		t.Errorf("rel32 = %d, want %d", got, want)
	}
}

func TestAssemblerResolveTwiceErrors(t *testing.T) {
	a := NewCodeAssembler()
	l := a.ReserveLabel()
	if err := a.Resolve(l); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := a.Resolve(l); err == nil {
		t.Fatal("expected error resolving the same label twice")
	}
}

func TestAssemblerLinkUnresolvedErrors(t *testing.T) {
	a := NewCodeAssembler()
	l := a.ReserveLabel()
	a.EmitRel32Fixup(l)
	if _, err := a.Link(); err == nil {
		t.Fatal("expected error linking with an unresolved label")
	}
}

func TestAssemblerLabelOffsetUnresolvedErrors(t *testing.T) {
	a := NewCodeAssembler()
	l := a.ReserveLabel()
	if _, err := a.LabelOffset(l); err == nil {
		t.Fatal("expected error reading the offset of an unresolved label")
	}
	a.Emit([]byte{1, 2, 3})
	if err := a.Resolve(l); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	off, err := a.LabelOffset(l)
	if err != nil {
		t.Fatalf("LabelOffset: %v", err)
	}
	if off != 3 {
		t.Errorf("LabelOffset = %d, want 3", off)
	}
}

func TestAssemblerPatchUint32(t *testing.T) {
	a := NewCodeAssembler()
	pos := a.Emit([]byte{0, 0, 0, 0})
	a.PatchUint32(pos, 0xdeadbeef)
	buf := a.Encode()
	got := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	if got != 0xdeadbeef {
		t.Errorf("PatchUint32 wrote %#x, want 0xdeadbeef", got)
	}
}

func TestAssemblerInvalidLabelErrors(t *testing.T) {
	a := NewCodeAssembler()
	if err := a.Resolve(LabelID(5)); err == nil {
		t.Fatal("expected error resolving an out-of-range label")
	}
	if _, err := a.LabelOffset(LabelID(5)); err == nil {
		t.Fatal("expected error reading an out-of-range label")
	}
}
