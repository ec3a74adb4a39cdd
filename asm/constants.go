package asm

import "strings"

// registerNames maps every accepted spelling of a register operand (x0-x31
// and the ABI aliases) to its register number.
var registerNames = map[string]uint32{
	"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
	"t0": 5, "t1": 6, "t2": 7,
	"fp": 8, "s0": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25, "s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

func init() {
	for i := 0; i < 32; i++ {
		registerNames[xRegName(i)] = uint32(i)
	}
}

func xRegName(n int) string {
	return "x" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [4]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// lookupRegister resolves a register operand, case-insensitively.
func lookupRegister(name string) (uint32, bool) {
	n, ok := registerNames[strings.ToLower(name)]
	return n, ok
}

// directiveNames is the set of recognized directive keywords (the text
// immediately following a leading '.').
var directiveNames = map[string]bool{
	"section": true, "text": true, "data": true, "globl": true, "global": true,
	"byte": true, "half": true, "word": true,
	"ascii": true, "asciz": true, "asciiz": true, "string": true,
}

// csrNames maps a handful of named CSRs to their numeric address; anything
// else is parsed as a bare numeric literal.
var csrNames = map[string]uint32{
	"sstatus": 0x100, "sie": 0x104, "stvec": 0x105, "sscratch": 0x140,
	"sepc": 0x141, "scause": 0x142, "sip": 0x144,
	"mstatus": 0x300, "mie": 0x304, "mip": 0x344,
}
