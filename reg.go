package main

// The code generator needs no general register allocator: every BF
// program uses exactly two live values (the cursor, and in safe or
// profiling mode the original tape base for bounds checks and the
// heartbeat slot address), so both backends assign them to
// fixed registers instead of running allocation.

// x86-64: encodings per the AMD64 architecture manual, used directly by
// the modrm/rex helpers in x86_64_codegen.go. R14/R15 were picked over
// R13/RBP specifically because their low three encoding bits (110, 111)
// never trigger the mod=00 "no base, disp32/RIP-relative" special case
// that RSP (100) and RBP/R13 (101) do, which keeps the ModRM+SIB logic
// uniform.
const (
	regCursorX86    uint8 = 14 // R14: cursor pointer (tape_base + index)
	regTapeBaseX86  uint8 = 15 // R15: original tape pointer, for bounds checks
	regScratchAX86  uint8 = 0  // RAX/EAX/AL: scratch for loads, products, syscall args
	regScratchDX86  uint8 = 2  // RDX/EDX/DL: scratch, syscall count arg
	regScratchSIX86 uint8 = 6  // RSI: syscall buffer-address arg
	regScratchDIX86 uint8 = 7  // RDI: syscall fd arg
)

// ARM64: AAPCS64 callee-saved registers x19/x20 hold the same two roles;
// x9/x10 are caller-saved scratch for address materialization and loads.
const (
	regCursorARM64   uint32 = 19
	regTapeBaseARM64 uint32 = 20
	regScratch1ARM64 uint32 = 9
	regScratch2ARM64 uint32 = 10
)
