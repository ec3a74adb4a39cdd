package encoder

import "strings"

// EncodeUpper encodes `lui rd, imm` / `auipc rd, imm`. imm is the raw
// 20-bit field value (already shifted out of its eventual bit position).
func EncodeUpper(mnemonic string, ops Operands) (uint32, error) {
	m := strings.ToLower(mnemonic)
	if err := checkRange(int64(ops.Imm), -524288, 1048575, m); err != nil {
		return 0, err
	}
	switch m {
	case "lui":
		return EncodeU(OpcodeLUI, ops.Rd, ops.Imm), nil
	case "auipc":
		return EncodeU(OpcodeAUIPC, ops.Rd, ops.Imm), nil
	default:
		return 0, &UnknownMnemonicError{mnemonic}
	}
}

// EncodeJAL encodes `jal rd, label` given a resolved PC-relative byte
// offset.
func EncodeJAL(ops Operands) (uint32, error) {
	if ops.Imm%2 != 0 {
		return 0, &RangeError{Value: int64(ops.Imm), Low: -1048576, High: 1048574, Field: "jal offset (must be even)"}
	}
	if err := checkRange(int64(ops.Imm), -1048576, 1048574, "jal offset"); err != nil {
		return 0, err
	}
	return EncodeJ(OpcodeJAL, ops.Rd, ops.Imm), nil
}

// EncodeJALR encodes `jalr rd, rs1, imm`.
func EncodeJALR(ops Operands) (uint32, error) {
	if err := checkRange(int64(ops.Imm), -2048, 2047, "jalr offset"); err != nil {
		return 0, err
	}
	return EncodeI(OpcodeJALR, F3JALR, ops.Rd, ops.Rs1, ops.Imm), nil
}

// EncodeECALL returns the canonical ECALL encoding.
func EncodeECALL() uint32 { return ECALLEncoding }

// EncodeSRET returns the canonical SRET encoding.
func EncodeSRET() uint32 { return SRETEncoding }

type csrDesc struct {
	funct3 uint32
	imm    bool // *i forms: rs1 field carries a 5-bit zero-extended immediate
}

var csrTable = map[string]csrDesc{
	"csrrw": {F3CSRRW, false}, "csrrs": {F3CSRRS, false}, "csrrc": {F3CSRRC, false},
	"csrrwi": {F3CSRRWI, true}, "csrrsi": {F3CSRRSI, true}, "csrrci": {F3CSRRCI, true},
}

// IsCSR reports whether mnemonic is one of the six CSR access forms.
func IsCSR(mnemonic string) bool { _, ok := csrTable[strings.ToLower(mnemonic)]; return ok }

// EncodeCSR encodes `csrrw rd, csr, rs1` (register forms) or
// `csrrwi rd, csr, uimm` (immediate forms, carried in ops.Rs1 as a
// pre-truncated 5-bit value).
func EncodeCSR(mnemonic string, ops Operands) (uint32, error) {
	d, ok := csrTable[strings.ToLower(mnemonic)]
	if !ok {
		return 0, &UnknownMnemonicError{mnemonic}
	}
	return (ops.CSR&0xFFF)<<20 | (ops.Rs1&0x1F)<<15 | (d.funct3&0x7)<<12 | (ops.Rd&0x1F)<<7 | OpcodeSystem, nil
}
