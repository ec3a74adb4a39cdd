// Package encoder contains pure functions that turn operand tuples into
// 32-bit RISC-V instruction words. Nothing here touches labels, sections,
// or symbol tables — that is the assembler driver's job.
package encoder

// EncodeR packs an R-type instruction: funct7 | rs2 | rs1 | funct3 | rd | opcode.
func EncodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return (funct7&0x7F)<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | (funct3&0x7)<<12 | (rd&0x1F)<<7 | (opcode & 0x7F)
}

// EncodeI packs an I-type instruction. imm is sign-extended to 12 bits by
// the caller's range check; only the low 12 bits are used here.
func EncodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1&0x1F)<<15 | (funct3&0x7)<<12 | (rd&0x1F)<<7 | (opcode & 0x7F)
}

// EncodeS packs an S-type instruction (store): imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode.
func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	hi := (u >> 5) & 0x7F
	lo := u & 0x1F
	return hi<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | (funct3&0x7)<<12 | lo<<7 | (opcode & 0x7F)
}

// EncodeB packs a B-type instruction (branch). imm is the byte offset,
// must be even; bit 0 is implicitly zero and not stored.
func EncodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	b12 := (u >> 12) & 0x1
	b11 := (u >> 11) & 0x1
	b10_5 := (u >> 5) & 0x3F
	b4_1 := (u >> 1) & 0xF
	return b12<<31 | b10_5<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | (funct3&0x7)<<12 | b4_1<<8 | b11<<7 | (opcode & 0x7F)
}

// EncodeU packs a U-type instruction (LUI/AUIPC). imm20 holds the already
// shifted-out upper 20 bits (i.e. the value as it appears in bits [31:12]).
func EncodeU(opcode, rd uint32, imm20 int32) uint32 {
	return (uint32(imm20)&0xFFFFF)<<12 | (rd&0x1F)<<7 | (opcode & 0x7F)
}

// EncodeJ packs a J-type instruction (JAL). imm is the byte offset,
// must be even.
func EncodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	b20 := (u >> 20) & 0x1
	b19_12 := (u >> 12) & 0xFF
	b11 := (u >> 11) & 0x1
	b10_1 := (u >> 1) & 0x3FF
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | (rd&0x1F)<<7 | (opcode & 0x7F)
}

// SplitImm32 performs the sign-bridging split used by `li` and `la`: the
// low 12 bits are sign-extended (so they can be fed to an ADDI), and the
// upper 20 bits are adjusted so that hi<<12 + signExtend(lo) == value.
func SplitImm32(value int32) (hi int32, lo int32) {
	u := uint32(value)
	lo32 := u & 0xFFF
	if lo32 >= 0x800 {
		lo32 -= 0x1000
	}
	hi32 := (u - lo32) >> 12
	return int32(hi32), int32(lo32)
}
