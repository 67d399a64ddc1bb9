package main

import "encoding/binary"

// AArch64 CodeEmitter.
//
// Register roles (see reg.go): X19 is the cursor, X20 the original tape
// pointer for bounds checks; X9-X12 are scratch. X19/X20 are AAPCS64
// callee-saved, which costs nothing here since this function never
// returns into code that expects them preserved, but matches the
// convention a human AArch64 JIT author would reach for.
//
// As on x86-64, the entry function is invoked through the Go-funcval
// trick (exec_mem.go), so the single uintptr argument and the int32
// result both travel through X0 under Go's ABIInternal — which happens
// to be the same register AAPCS64 would use for a single integer
// argument/return, so no convention mismatch needs correcting here.
type arm64Emitter struct {
	asm       *CodeAssembler
	debugMap  *DebugMap
	safe      bool
	profiling bool
	lowBound  int32
	highBound int32
	trap      LabelID
	trapUsed  bool
	fixups    []arm64Fixup
}

// arm64Fixup records a CBZ/CBNZ whose imm19 displacement (word-granular,
// relative to the branch instruction itself) isn't known until its
// label resolves. base holds every bit of the instruction except the
// imm19 field, which starts zeroed.
type arm64Fixup struct {
	pos   int
	label LabelID
	base  uint32
}

func newARM64Emitter(debugMap *DebugMap) *arm64Emitter {
	return &arm64Emitter{asm: NewCodeAssembler(), debugMap: debugMap}
}

func (a *arm64Emitter) SetBounds(low, high int32) {
	a.lowBound, a.highBound = low, high
}

func (a *arm64Emitter) Prologue(safe, profiling bool) {
	a.safe = safe
	a.profiling = profiling
	a.emit32(movRegReg(regCursorARM64, 0))
	if safe || profiling {
		// x20 is needed for the bounds check (safe) and/or the
		// heartbeat slot address (profiling), both relative to it.
		a.emit32(movRegReg(regTapeBaseARM64, 0))
	}
	if safe {
		a.trap = a.asm.ReserveLabel()
	}
}

func (a *arm64Emitter) Epilogue() {
	a.emit32(movz64(0, 0, 0)) // movz x0, #0
	a.emit32(0xD65F03C0)      // ret
	if a.safe && a.trapUsed {
		a.asm.Resolve(a.trap)
		a.emit32(0xD4200000) // brk #0
	}
}

func (a *arm64Emitter) Finish() ([]byte, error) {
	for _, f := range a.fixups {
		target, err := a.asm.LabelOffset(f.label)
		if err != nil {
			return nil, err
		}
		delta := target - f.pos
		imm19 := uint32((delta/4)&0x7FFFF)
		a.asm.PatchUint32(f.pos, f.base|(imm19<<5))
	}
	if _, err := a.asm.Link(); err != nil {
		return nil, err
	}
	return a.asm.Encode(), nil
}

func (a *arm64Emitter) MovePtr(count int32) {
	if count == 0 {
		return
	}
	a.materializeAbsInto(regScratch1ARM64, count)
	if count > 0 {
		a.emit32(addRegReg(regCursorARM64, regCursorARM64, regScratch1ARM64))
	} else {
		a.emit32(subRegReg(regCursorARM64, regCursorARM64, regScratch1ARM64))
	}
	if a.safe {
		a.emitBoundsCheck()
	}
}

func (a *arm64Emitter) AddVal(count, offset int32) {
	a.loadCellAddr(regScratch1ARM64, regCursorARM64, offset)
	a.emit32(ldurb(regScratch2ARM64, regScratch1ARM64, 0))
	a.emit32(addImm32(regScratch2ARM64, regScratch2ARM64, uint32(wrapByte(count))))
	a.emit32(sturb(regScratch2ARM64, regScratch1ARM64, 0))
}

func (a *arm64Emitter) SetConst(value, offset int32) {
	a.loadCellAddr(regScratch1ARM64, regCursorARM64, offset)
	a.emit32(movz32(regScratch2ARM64, uint32(wrapByte(value))))
	a.emit32(sturb(regScratch2ARM64, regScratch1ARM64, 0))
}

func (a *arm64Emitter) Mul(multiplier, src, dst int32) {
	a.loadCellAddr(regScratch1ARM64, regCursorARM64, src)
	a.emit32(ldurb(10, regScratch1ARM64, 0))
	a.emit32(movz32(11, uint32(multiplier)))
	a.emit32(madd32(10, 10, 11))
	a.loadCellAddr(regScratch1ARM64, regCursorARM64, dst)
	a.emit32(ldurb(12, regScratch1ARM64, 0))
	a.emit32(addRegReg32(10, 10, 12))
	a.emit32(sturb(10, regScratch1ARM64, 0))
}

func (a *arm64Emitter) CopyCell(src, dst int32) {
	a.loadCellAddr(regScratch1ARM64, regCursorARM64, src)
	a.emit32(ldurb(10, regScratch1ARM64, 0))
	a.loadCellAddr(regScratch1ARM64, regCursorARM64, dst)
	a.emit32(ldurb(11, regScratch1ARM64, 0))
	a.emit32(addRegReg32(10, 10, 11))
	a.emit32(sturb(10, regScratch1ARM64, 0))
}

func (a *arm64Emitter) Output(offset int32) {
	a.loadCellAddr(1, regCursorARM64, offset)
	a.emit32(movz64(0, fdStdout, 0))
	a.emit32(movz64(2, 1, 0))
	a.emit32(movz64(8, sysWriteLinuxARM64, 0))
	a.emit32(0xD4000001) // svc #0
}

func (a *arm64Emitter) Input(offset int32) {
	a.loadCellAddr(1, regCursorARM64, offset)
	a.emit32(movz64(0, fdStdin, 0))
	a.emit32(movz64(2, 1, 0))
	a.emit32(movz64(8, sysReadLinuxARM64, 0))
	a.emit32(0xD4000001)
}

func (a *arm64Emitter) LoopStart() (top, after LabelID) {
	top = a.asm.ReserveLabel()
	after = a.asm.ReserveLabel()
	a.asm.Resolve(top)
	a.emit32(ldurb(9, regCursorARM64, 0))
	a.emitBranchFixup(after, cbzBase(9))
	return top, after
}

func (a *arm64Emitter) LoopEnd(top, after LabelID) {
	a.emit32(ldurb(9, regCursorARM64, 0))
	a.emitBranchFixup(top, cbnzBase(9))
	a.asm.Resolve(after)
}

func (a *arm64Emitter) DebugLabel(n *Node) {
	id := a.debugMap.LabelFor(n)
	a.debugMap.Record(id, a.asm.Offset(), n)
	// Independent of safe mode: Prologue materializes x20 whenever
	// profiling is on.
	if a.profiling {
		a.loadCellAddr(regScratch1ARM64, regTapeBaseARM64, a.lowBound-heartbeatSlotOffset)
		a.emit32(movz32(regScratch2ARM64, id))
		a.emit32(sturWord(regScratch2ARM64, regScratch1ARM64, 0))
	}
}

// --- bounds check ---

func (a *arm64Emitter) emitBoundsCheck() {
	a.trapUsed = true
	// x9 = x19 - x20
	a.emit32(subRegReg(9, regCursorARM64, regTapeBaseARM64))
	a.materializeAbsInto(10, a.lowBound)
	if a.lowBound < 0 {
		a.emit32(subRegReg(10, 31, 10)) // neg x10, x10 (Rn=31 is XZR)
	}
	a.emit32(cmpReg64(9, 10))
	a.emitBranchFixupCond(a.trap, condLT)
	a.materializeAbsInto(10, a.highBound)
	a.emit32(cmpReg64(9, 10))
	a.emitBranchFixupCond(a.trap, condGE)
}

// --- low-level encoders ---

func (a *arm64Emitter) emit32(word uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	a.asm.Emit(buf[:])
}

func (a *arm64Emitter) emitBranchFixup(label LabelID, base uint32) {
	pos := a.asm.Offset()
	a.emit32(base)
	a.fixups = append(a.fixups, arm64Fixup{pos: pos, label: label, base: base})
}

// emitBranchFixupCond emits a B.cond with a placeholder imm19, to be
// patched the same way CBZ/CBNZ are.
func (a *arm64Emitter) emitBranchFixupCond(label LabelID, cond uint32) {
	a.emitBranchFixup(label, bCondBase(cond))
}

// materializeAbsInto loads the magnitude of v into reg via MOVZ (+ an
// optional MOVK for values needing more than 16 bits). MovePtr counts and
// bounds-check constants both go through this.
func (a *arm64Emitter) materializeAbsInto(reg uint32, v int32) {
	m := uint32(v)
	if v < 0 {
		m = uint32(-v)
	}
	a.emit32(movz64(reg, m&0xFFFF, 0))
	if hi := (m >> 16) & 0xFFFF; hi != 0 {
		a.emit32(movk64(reg, hi, 1))
	}
}

// loadCellAddr computes dst = baseReg + offset, handling the whole
// signed 32-bit offset range (the imm12 immediate forms only cover
// 0..4095, which post-optimizer basic-block offsets may exceed).
func (a *arm64Emitter) loadCellAddr(dst, baseReg uint32, offset int32) {
	if offset >= 0 && offset <= 4095 {
		a.emit32(addImm64(dst, baseReg, uint32(offset)))
		return
	}
	if offset < 0 && offset >= -4095 {
		a.emit32(subImm64(dst, baseReg, uint32(-offset)))
		return
	}
	a.materializeAbsInto(regScratch2ARM64, offset)
	if offset > 0 {
		a.emit32(addRegReg(dst, baseReg, regScratch2ARM64))
	} else {
		a.emit32(subRegReg(dst, baseReg, regScratch2ARM64))
	}
}

// --- instruction encodings ---
// Encodings follow the ARM Architecture Reference Manual's A64 tables;
// field layouts are spelled out per function since there's no assembler
// package in play to hide them behind.

func movRegReg(rd, rm uint32) uint32 {
	// MOV Xd, Xm == ORR Xd, XZR, Xm
	return 0xAA0003E0 | (rm << 16) | rd
}

func movz64(rd, imm16, hw uint32) uint32 {
	return 0xD2800000 | (hw << 21) | ((imm16 & 0xFFFF) << 5) | rd
}

func movk64(rd, imm16, hw uint32) uint32 {
	return 0xF2800000 | (hw << 21) | ((imm16 & 0xFFFF) << 5) | rd
}

func movz32(rd, imm16 uint32) uint32 {
	return 0x52800000 | ((imm16 & 0xFFFF) << 5) | rd
}

func addImm64(rd, rn, imm12 uint32) uint32 {
	return 0x91000000 | ((imm12 & 0xFFF) << 10) | (rn << 5) | rd
}

func subImm64(rd, rn, imm12 uint32) uint32 {
	return 0xD1000000 | ((imm12 & 0xFFF) << 10) | (rn << 5) | rd
}

func addImm32(rd, rn, imm12 uint32) uint32 {
	return 0x11000000 | ((imm12 & 0xFFF) << 10) | (rn << 5) | rd
}

func addRegReg(rd, rn, rm uint32) uint32 {
	return 0x8B000000 | (rm << 16) | (rn << 5) | rd
}

func subRegReg(rd, rn, rm uint32) uint32 {
	return 0xCB000000 | (rm << 16) | (rn << 5) | rd
}

func addRegReg32(rd, rn, rm uint32) uint32 {
	return 0x0B000000 | (rm << 16) | (rn << 5) | rd
}

func madd32(rd, rn, rm uint32) uint32 {
	// MUL Wd, Wn, Wm == MADD Wd, Wn, Wm, WZR
	return 0x1B007C00 | (rm << 16) | (rn << 5) | rd
}

func ldurb(rt, rn uint32, simm9 int32) uint32 {
	return 0x38400000 | ((uint32(simm9) & 0x1FF) << 12) | (rn << 5) | rt
}

func sturb(rt, rn uint32, simm9 int32) uint32 {
	return 0x38000000 | ((uint32(simm9) & 0x1FF) << 12) | (rn << 5) | rt
}

func sturWord(rt, rn uint32, simm9 int32) uint32 {
	// STUR Wt, [Xn, #simm9] — 32-bit unscaled store, used for the
	// heartbeat slot (a uint32).
	return 0xB8000000 | ((uint32(simm9) & 0x1FF) << 12) | (rn << 5) | rt
}

func cmpReg64(rn, rm uint32) uint32 {
	// CMP Xn, Xm == SUBS XZR, Xn, Xm
	return 0xEB00001F | (rm << 16) | (rn << 5)
}

const (
	condLT = 0xB
	condGE = 0xA
)

func bCondBase(cond uint32) uint32 {
	// B.cond, imm19 field zeroed
	return 0x54000000 | (cond & 0xF)
}

func cbzBase(rt uint32) uint32 {
	return 0x34000000 | rt
}

func cbnzBase(rt uint32) uint32 {
	return 0x35000000 | rt
}
