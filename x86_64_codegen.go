package main

// x86-64 CodeEmitter.
//
// Register roles (see reg.go): R14 is the cursor (tape_base + index),
// R15 holds the original tape pointer for bounds checks in safe mode and
// for the heartbeat slot address when profiling.
// RAX/RDX/RSI/RDI are scratch, matching what the read/write syscalls
// need anyway so no shuffling is required right before a syscall.
//
// The entry function is called through the Go-funcval trick (see
// exec_mem.go), which means argument passing follows the Go register
// ABI (ABIInternal), not the C SysV ABI: the single uintptr argument
// arrives in RAX, and the int32 result is returned in RAX. This is the
// one place the calling convention differs from what a C JIT would do.
type x86_64Emitter struct {
	asm       *CodeAssembler
	debugMap  *DebugMap
	safe      bool
	profiling bool
	lowBound  int32
	highBound int32
	trap      LabelID
	trapUsed  bool
}

func newX86_64Emitter(debugMap *DebugMap) *x86_64Emitter {
	return &x86_64Emitter{asm: NewCodeAssembler(), debugMap: debugMap}
}

// SetBounds configures the inline bounds-check immediates used in safe
// mode: cursor - tapePtr must stay within [low, high). Both are known at
// code-generation time from --memory/--memory-offset, even though the
// tape's runtime address is not (see driver.go ordering).
func (x *x86_64Emitter) SetBounds(low, high int32) {
	x.lowBound, x.highBound = low, high
}

func (x *x86_64Emitter) Prologue(safe, profiling bool) {
	x.safe = safe
	x.profiling = profiling
	// mov r14, rax
	x.emitMovRegReg64(regCursorX86, regScratchAX86)
	if safe || profiling {
		// mov r15, rax -- needed for the bounds check (safe) and/or the
		// heartbeat slot address (profiling), both relative to it.
		x.emitMovRegReg64(regTapeBaseX86, regScratchAX86)
	}
	if safe {
		x.trap = x.asm.ReserveLabel()
	}
}

func (x *x86_64Emitter) Epilogue() {
	// xor eax, eax ; ret
	x.asm.Emit([]byte{0x31, 0xC0, 0xC3})
	if x.safe && x.trapUsed {
		x.asm.Resolve(x.trap)
		// ud2
		x.asm.Emit([]byte{0x0F, 0x0B})
	}
}

func (x *x86_64Emitter) Finish() ([]byte, error) {
	if _, err := x.asm.Link(); err != nil {
		return nil, err
	}
	return x.asm.Encode(), nil
}

func (x *x86_64Emitter) MovePtr(count int32) {
	if count == 0 {
		return
	}
	// add r14, imm32
	x.emitAddImm64(regCursorX86, count)
	if x.safe {
		x.emitBoundsCheck()
	}
}

func (x *x86_64Emitter) AddVal(count, offset int32) {
	// add byte [r14+offset], imm8
	b := byte(wrapByte(count))
	x.emit(0x41, 0x80)
	x.emitMemOperand(0, regCursorX86, offset)
	x.asm.Emit([]byte{b})
}

func (x *x86_64Emitter) SetConst(value, offset int32) {
	// mov byte [r14+offset], imm8
	b := byte(wrapByte(value))
	x.emit(0x41, 0xC6)
	x.emitMemOperand(0, regCursorX86, offset)
	x.asm.Emit([]byte{b})
}

func (x *x86_64Emitter) Mul(multiplier, src, dst int32) {
	// movzx eax, byte [r14+src]
	x.emitMovzx(regScratchAX86, src)
	// imul eax, eax, multiplier
	x.emit(0x69, 0xC0)
	x.emitImm32(multiplier)
	// add byte [r14+dst], al
	x.emit(0x41, 0x00)
	x.emitMemOperand(regScratchAX86, regCursorX86, dst)
}

func (x *x86_64Emitter) CopyCell(src, dst int32) {
	// movzx eax, byte [r14+src]
	x.emitMovzx(regScratchAX86, src)
	// add byte [r14+dst], al
	x.emit(0x41, 0x00)
	x.emitMemOperand(regScratchAX86, regCursorX86, dst)
}

func (x *x86_64Emitter) Output(offset int32) {
	// lea rsi, [r14+offset] ; mov edi, 1 ; mov edx, 1 ; mov eax, 1 ; syscall
	x.emitLea(regScratchSIX86, regCursorX86, offset)
	x.emitMovImm32(regScratchDIX86, fdStdout)
	x.emitMovImm32(regScratchDX86, 1)
	x.emitMovImm32(regScratchAX86, sysWriteLinuxX86_64)
	x.emit(0x0F, 0x05)
}

func (x *x86_64Emitter) Input(offset int32) {
	// lea rsi, [r14+offset] ; mov edi, 0 ; mov edx, 1 ; mov eax, 0 ; syscall
	x.emitLea(regScratchSIX86, regCursorX86, offset)
	x.emitMovImm32(regScratchDIX86, fdStdin)
	x.emitMovImm32(regScratchDX86, 1)
	x.emitMovImm32(regScratchAX86, sysReadLinuxX86_64)
	x.emit(0x0F, 0x05)
}

func (x *x86_64Emitter) LoopStart() (top, after LabelID) {
	top = x.asm.ReserveLabel()
	after = x.asm.ReserveLabel()
	x.asm.Resolve(top)
	// movzx eax, byte [r14] ; test al, al ; jz after
	x.emitMovzx(regScratchAX86, 0)
	x.emit(0x84, 0xC0)
	x.emit(0x0F, 0x84)
	x.asm.EmitRel32Fixup(after)
	return top, after
}

func (x *x86_64Emitter) LoopEnd(top, after LabelID) {
	// movzx eax, byte [r14] ; test al, al ; jnz top
	x.emitMovzx(regScratchAX86, 0)
	x.emit(0x84, 0xC0)
	x.emit(0x0F, 0x85)
	x.asm.EmitRel32Fixup(top)
	x.asm.Resolve(after)
}

func (x *x86_64Emitter) DebugLabel(n *Node) {
	id := x.debugMap.LabelFor(n)
	x.debugMap.Record(id, x.asm.Offset(), n)
	// mov dword [heartbeat_slot], id  -- the heartbeat slot lives in the
	// pad just below the first tape cell, above the lower guard page (see
	// tape.go); addressed as r15 + lowBound - heartbeatSlotOffset so it
	// works regardless of the tape's runtime base, same trick the bounds
	// check uses. Independent of
	// safe mode: Prologue materializes r15 whenever profiling is on.
	if x.profiling {
		x.emitMovImmToMem32(regTapeBaseX86, x.lowBound-heartbeatSlotOffset, int32(id))
	}
}

// --- bounds check ---

func (x *x86_64Emitter) emitBoundsCheck() {
	x.trapUsed = true
	// mov rax, r14 ; sub rax, r15
	x.emit(0x4C, 0x89, 0xF0)
	x.emit(0x4C, 0x29, 0xF8)
	// cmp rax, lowBound ; jl trap
	x.emit(0x48, 0x81, 0xF8)
	x.emitImm32(x.lowBound)
	x.emit(0x0F, 0x8C)
	x.asm.EmitRel32Fixup(x.trap)
	// cmp rax, highBound ; jge trap
	x.emit(0x48, 0x81, 0xF8)
	x.emitImm32(x.highBound)
	x.emit(0x0F, 0x8D)
	x.asm.EmitRel32Fixup(x.trap)
}

// --- low-level encoders ---

func (x *x86_64Emitter) emit(b ...byte) {
	x.asm.Emit(b)
}

func (x *x86_64Emitter) emitImm32(v int32) {
	x.asm.Emit([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// emitMemOperand writes the ModRM (+ disp8/disp32) bytes for [baseReg +
// offset], with reg3 as the ModRM.reg field. It never emits the mod=00
// no-displacement form when baseReg's low 3 bits are 101 (RBP/R13) to
// avoid the RIP-relative special case, but neither cursor register
// (R14/R15) has that encoding so this only matters if the register
// assignment in reg.go ever changes.
func (x *x86_64Emitter) emitMemOperand(reg3, baseReg uint8, offset int32) {
	rm := baseReg & 7
	switch {
	case offset == 0 && rm != 5:
		x.asm.Emit([]byte{modrm(0, reg3, rm)})
	case offset >= -128 && offset <= 127:
		x.asm.Emit([]byte{modrm(1, reg3, rm), byte(offset)})
	default:
		x.asm.Emit([]byte{modrm(2, reg3, rm)})
		x.emitImm32(offset)
	}
}

func modrm(mod, reg, rm uint8) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

func (x *x86_64Emitter) emitMovRegReg64(dst, src uint8) {
	// mov dst, src  (opcode 0x89 /r: r/m=dst, reg=src)
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	if src >= 8 {
		rex |= 0x04 // REX.R
	}
	x.emit(rex, 0x89, modrm(3, src&7, dst&7))
}

func (x *x86_64Emitter) emitAddImm64(reg uint8, imm int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	x.emit(rex, 0x81, modrm(3, 0, reg&7))
	x.emitImm32(imm)
}

func (x *x86_64Emitter) emitMovzx(dst uint8, offset int32) {
	// movzx dst, byte [r14+offset]
	x.emit(0x41, 0x0F, 0xB6)
	x.emitMemOperand(dst, regCursorX86, offset)
}

func (x *x86_64Emitter) emitLea(dst, baseReg uint8, offset int32) {
	rex := byte(0x48)
	if baseReg >= 8 {
		rex |= 0x01
	}
	x.emit(rex, 0x8D)
	x.emitMemOperand(dst, baseReg, offset)
}

func (x *x86_64Emitter) emitMovImm32(dst uint8, imm int32) {
	// mov r32, imm32 (opcode B8+rd id)
	if dst >= 8 {
		x.emit(0x41, 0xB8+(dst&7))
	} else {
		x.emit(0xB8 + dst)
	}
	x.emitImm32(imm)
}

func (x *x86_64Emitter) emitMovImmToMem32(baseReg uint8, offset, imm int32) {
	// mov dword [baseReg+offset], imm32
	x.emit(0x41, 0xC7)
	x.emitMemOperand(0, baseReg, offset)
	x.emitImm32(imm)
}
