package encoder

import "strings"

var loadFunct3 = map[string]uint32{
	"lb": F3LB, "lh": F3LH, "lw": F3LW, "lbu": F3LBU, "lhu": F3LHU,
}

var storeFunct3 = map[string]uint32{
	"sb": F3SB, "sh": F3SH, "sw": F3SW,
}

// IsLoad reports whether mnemonic is a load instruction.
func IsLoad(mnemonic string) bool { _, ok := loadFunct3[strings.ToLower(mnemonic)]; return ok }

// IsStore reports whether mnemonic is a store instruction.
func IsStore(mnemonic string) bool { _, ok := storeFunct3[strings.ToLower(mnemonic)]; return ok }

// EncodeLoad encodes `rd, imm(rs1)`.
func EncodeLoad(mnemonic string, ops Operands) (uint32, error) {
	m := strings.ToLower(mnemonic)
	f3, ok := loadFunct3[m]
	if !ok {
		return 0, &UnknownMnemonicError{mnemonic}
	}
	if err := checkRange(int64(ops.Imm), -2048, 2047, m); err != nil {
		return 0, err
	}
	return EncodeI(OpcodeLoad, f3, ops.Rd, ops.Rs1, ops.Imm), nil
}

// EncodeStore encodes `rs2, imm(rs1)`.
func EncodeStore(mnemonic string, ops Operands) (uint32, error) {
	m := strings.ToLower(mnemonic)
	f3, ok := storeFunct3[m]
	if !ok {
		return 0, &UnknownMnemonicError{mnemonic}
	}
	if err := checkRange(int64(ops.Imm), -2048, 2047, m); err != nil {
		return 0, err
	}
	return EncodeS(OpcodeStore, f3, ops.Rs1, ops.Rs2, ops.Imm), nil
}
