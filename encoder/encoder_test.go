package encoder

import "testing"

func TestEncodeRType(t *testing.T) {
	word, err := EncodeRType("add", Operands{Rd: 1, Rs1: 2, Rs2: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := EncodeR(OpcodeOp, F3ADDSUB, F7Normal, 1, 2, 3)
	if word != want {
		t.Fatalf("got 0x%08x want 0x%08x", word, want)
	}
}

func TestEncodeITypeRangeCheck(t *testing.T) {
	if _, err := EncodeIType("addi", Operands{Rd: 1, Rs1: 2, Imm: 3000}); err == nil {
		t.Fatalf("expected range error")
	}
	if _, err := EncodeIType("addi", Operands{Rd: 1, Rs1: 2, Imm: 2047}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSplitImm32SignBridging(t *testing.T) {
	hi, lo := SplitImm32(0x1234)
	if int32(hi)<<12+lo != 0x1234 {
		t.Fatalf("hi=%d lo=%d does not reconstruct 0x1234", hi, lo)
	}
	hi2, lo2 := SplitImm32(-1)
	if int32(hi2)<<12+lo2 != -1 {
		t.Fatalf("hi=%d lo=%d does not reconstruct -1", hi2, lo2)
	}
}

func TestBranchSwapPseudos(t *testing.T) {
	real, swap := BranchSwap("bgt")
	if real != "blt" || !swap {
		t.Fatalf("bgt should swap to blt, got %s swap=%v", real, swap)
	}
	real, swap = BranchSwap("beq")
	if real != "beq" || swap {
		t.Fatalf("beq should pass through unchanged")
	}
}

func TestEncodeJALRoundTripsOffset(t *testing.T) {
	word, err := EncodeJAL(Operands{Rd: 1, Imm: 4096})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if word&0x7F != OpcodeJAL {
		t.Fatalf("opcode field mismatch")
	}
	imm := (word>>31&1)<<20 | (word>>12&0xFF)<<12 | (word>>20&1)<<11 | (word>>21&0x3FF)<<1
	if imm != 4096 {
		t.Fatalf("decoded offset = %d, want 4096", imm)
	}
}

func TestEncodeUpperOutOfRange(t *testing.T) {
	if _, err := EncodeUpper("lui", Operands{Rd: 1, Imm: 2000000}); err == nil {
		t.Fatalf("expected range error")
	}
}
