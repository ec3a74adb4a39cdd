package encoder

import "strings"

// Operands is the fully-resolved operand tuple for one instruction: all
// symbolic references (labels, register names) have already been turned
// into numbers by the caller.
type Operands struct {
	Rd, Rs1, Rs2 uint32
	Imm          int32 // immediate, or PC-relative byte offset for branches/jumps
	CSR          uint32
}

type rTypeDesc struct {
	funct3, funct7 uint32
}

var rType = map[string]rTypeDesc{
	"add": {F3ADDSUB, F7Normal}, "sub": {F3ADDSUB, F7Alt},
	"sll": {F3SLL, F7Normal}, "slt": {F3SLT, F7Normal}, "sltu": {F3SLTU, F7Normal},
	"xor": {F3XOR, F7Normal}, "srl": {F3SRLSRA, F7Normal}, "sra": {F3SRLSRA, F7Alt},
	"or": {F3OR, F7Normal}, "and": {F3AND, F7Normal},
	"mul": {F3MUL, F7MulDiv}, "mulh": {F3MULH, F7MulDiv}, "mulhsu": {F3MULHSU, F7MulDiv}, "mulhu": {F3MULHU, F7MulDiv},
	"div": {F3DIV, F7MulDiv}, "divu": {F3DIVU, F7MulDiv}, "rem": {F3REM, F7MulDiv}, "remu": {F3REMU, F7MulDiv},
}

type iTypeDesc struct {
	funct3    uint32
	shift     bool // slli/srli/srai: imm is a 5-bit shamt, funct7 selects variant
	shiftF7   uint32
}

var iType = map[string]iTypeDesc{
	"addi": {funct3: F3ADDSUB}, "slti": {funct3: F3SLT}, "sltiu": {funct3: F3SLTU},
	"xori": {funct3: F3XOR}, "ori": {funct3: F3OR}, "andi": {funct3: F3AND},
	"slli": {funct3: F3SLL, shift: true, shiftF7: F7Normal},
	"srli": {funct3: F3SRLSRA, shift: true, shiftF7: F7Normal},
	"srai": {funct3: F3SRLSRA, shift: true, shiftF7: F7Alt},
}

// EncodeRType encodes a 3-register ALU instruction.
func EncodeRType(mnemonic string, ops Operands) (uint32, error) {
	d, ok := rType[strings.ToLower(mnemonic)]
	if !ok {
		return 0, &UnknownMnemonicError{mnemonic}
	}
	return EncodeR(OpcodeOp, d.funct3, d.funct7, ops.Rd, ops.Rs1, ops.Rs2), nil
}

// EncodeIType encodes an ALU-immediate instruction, range-checking imm
// against the family's field width.
func EncodeIType(mnemonic string, ops Operands) (uint32, error) {
	m := strings.ToLower(mnemonic)
	d, ok := iType[m]
	if !ok {
		return 0, &UnknownMnemonicError{mnemonic}
	}
	if d.shift {
		if err := checkRange(int64(ops.Imm), 0, 31, m); err != nil {
			return 0, err
		}
		word := EncodeR(OpcodeOpImm, d.funct3, d.shiftF7, ops.Rd, ops.Rs1, uint32(ops.Imm)&0x1F)
		return word, nil
	}
	if err := checkRange(int64(ops.Imm), -2048, 2047, m); err != nil {
		return 0, err
	}
	return EncodeI(OpcodeOpImm, d.funct3, ops.Rd, ops.Rs1, ops.Imm), nil
}

// IsRType reports whether mnemonic is a 3-register ALU instruction.
func IsRType(mnemonic string) bool { _, ok := rType[strings.ToLower(mnemonic)]; return ok }

// IsIType reports whether mnemonic is an ALU-immediate instruction.
func IsIType(mnemonic string) bool { _, ok := iType[strings.ToLower(mnemonic)]; return ok }
