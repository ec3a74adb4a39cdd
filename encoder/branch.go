package encoder

import "strings"

type branchDesc struct {
	funct3 uint32
	swap   bool // pseudo formed by swapping rs1/rs2 against a real mnemonic
}

// branchTable covers the six real branches. The four swapped pseudos
// (bgt/ble/bgtu/bleu) are not in it: BranchSwap resolves them to
// blt/bge/bltu/bgeu, with operands exchanged by the caller before
// EncodeBranch is invoked.
var branchTable = map[string]branchDesc{
	"beq": {F3BEQ, false}, "bne": {F3BNE, false},
	"blt": {F3BLT, false}, "bge": {F3BGE, false},
	"bltu": {F3BLTU, false}, "bgeu": {F3BGEU, false},
}

// BranchSwap reports the real mnemonic a swapped pseudo branch lowers to,
// and whether rs1/rs2 must be exchanged.
func BranchSwap(mnemonic string) (real string, swap bool) {
	switch strings.ToLower(mnemonic) {
	case "bgt":
		return "blt", true
	case "ble":
		return "bge", true
	case "bgtu":
		return "bltu", true
	case "bleu":
		return "bgeu", true
	default:
		return strings.ToLower(mnemonic), false
	}
}

// IsBranch reports whether mnemonic (after pseudo resolution) is a branch.
func IsBranch(mnemonic string) bool {
	real, _ := BranchSwap(mnemonic)
	_, ok := branchTable[real]
	return ok
}

// EncodeBranch encodes a two-register branch to a PC-relative byte offset.
// The caller is responsible for resolving pseudo mnemonics via BranchSwap
// and zero-branch pseudos (beqz etc.) to their two-register form first.
func EncodeBranch(mnemonic string, ops Operands) (uint32, error) {
	real, _ := BranchSwap(mnemonic)
	d, ok := branchTable[real]
	if !ok {
		return 0, &UnknownMnemonicError{mnemonic}
	}
	if ops.Imm%2 != 0 {
		return 0, &RangeError{Value: int64(ops.Imm), Low: -4096, High: 4094, Field: "branch offset (must be even)"}
	}
	if err := checkRange(int64(ops.Imm), -4096, 4094, "branch offset"); err != nil {
		return 0, err
	}
	return EncodeB(OpcodeBranch, d.funct3, ops.Rs1, ops.Rs2, ops.Imm), nil
}

// ZeroBranchForm reports the two-register form a zero-compare pseudo
// branch folds to, and whether the zero register takes the rs1 or rs2
// slot (all of beqz/bnez/blez/bgez/bltz/bgtz compare rs against x0).
func ZeroBranchForm(mnemonic string) (real string, rsIsFirst bool, ok bool) {
	switch strings.ToLower(mnemonic) {
	case "beqz":
		return "beq", true, true
	case "bnez":
		return "bne", true, true
	case "blez":
		return "bge", false, true // x0 >= rs  <=>  rs <= 0
	case "bgez":
		return "bge", true, true
	case "bltz":
		return "blt", true, true
	case "bgtz":
		return "blt", false, true // x0 < rs  <=>  rs > 0
	default:
		return "", false, false
	}
}
