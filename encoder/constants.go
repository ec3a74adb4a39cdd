package encoder

// RISC-V base opcodes (bits [6:0] of the instruction word).
const (
	OpcodeLoad     = 0x03
	OpcodeMiscMem  = 0x0F
	OpcodeOpImm    = 0x13
	OpcodeAUIPC    = 0x17
	OpcodeStore    = 0x23
	OpcodeOp       = 0x33
	OpcodeLUI      = 0x37
	OpcodeBranch   = 0x63
	OpcodeJALR     = 0x67
	OpcodeJAL      = 0x6F
	OpcodeSystem   = 0x73
)

// funct3 field values, grouped by the opcode family that uses them.
const (
	F3ADDSUB = 0x0
	F3SLL    = 0x1
	F3SLT    = 0x2
	F3SLTU   = 0x3
	F3XOR    = 0x4
	F3SRLSRA = 0x5
	F3OR     = 0x6
	F3AND    = 0x7

	F3BEQ  = 0x0
	F3BNE  = 0x1
	F3BLT  = 0x4
	F3BGE  = 0x5
	F3BLTU = 0x6
	F3BGEU = 0x7

	F3LB  = 0x0
	F3LH  = 0x1
	F3LW  = 0x2
	F3LBU = 0x4
	F3LHU = 0x5

	F3SB = 0x0
	F3SH = 0x1
	F3SW = 0x2

	F3MUL    = 0x0
	F3MULH   = 0x1
	F3MULHSU = 0x2
	F3MULHU  = 0x3
	F3DIV    = 0x4
	F3DIVU   = 0x5
	F3REM    = 0x6
	F3REMU   = 0x7

	F3JALR = 0x0

	F3PRIV  = 0x0
	F3CSRRW = 0x1
	F3CSRRS = 0x2
	F3CSRRC = 0x3
	F3CSRRWI = 0x5
	F3CSRRSI = 0x6
	F3CSRRCI = 0x7
)

// funct7 field values.
const (
	F7Normal = 0x00
	F7Alt    = 0x20 // SUB / SRA
	F7MulDiv = 0x01
)

// Special ECALL/SRET encodings (system opcode, funct3=0, immediate field
// selects the operation; rd=rs1=x0).
const (
	ECALLEncoding = 0x00000073
	SRETEncoding  = 0x10200073
)
