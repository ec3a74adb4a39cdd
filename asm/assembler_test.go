package asm

import (
	"strings"
	"testing"

	"github.com/lookbusy1344/rv32toolchain/encoder"
	"github.com/lookbusy1344/rv32toolchain/memmap"
)

func TestAssembleSimpleProgram(t *testing.T) {
	src := ".globl _start\n_start: addi a0, x0, 5\naddi a1, x0, -3\nli a7, 93\necall\n"
	res, err := Assemble("t.s", src, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EntryPC != memmap.TextBase {
		t.Fatalf("entry pc = 0x%x, want text base", res.EntryPC)
	}
	txt := res.Mem.Find(".text")
	want, _ := encoder.EncodeIType("addi", encoder.Operands{Rd: 10, Rs1: 0, Imm: 5})
	got := uint32(txt.Contents[0]) | uint32(txt.Contents[1])<<8 | uint32(txt.Contents[2])<<16 | uint32(txt.Contents[3])<<24
	if got != want {
		t.Fatalf("first instruction mismatch: got 0x%08x want 0x%08x", got, want)
	}
}

func TestOutOfBoundsImmediate(t *testing.T) {
	_, err := Assemble("t.s", "addi x1, x2, 3000\n", false)
	if err == nil || !strings.Contains(err.Error(), "Out of bounds imm") {
		t.Fatalf("expected Out of bounds imm error, got %v", err)
	}
}

func TestForwardBranchResolves(t *testing.T) {
	src := "beq x0, x0, target\naddi x1, x0, 1\ntarget: addi x2, x0, 2\n"
	res, err := Assemble("t.s", src, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lbl, ok := res.Sym.Lookup("target")
	if !ok || lbl.Addr != memmap.TextBase+8 {
		t.Fatalf("target label resolved incorrectly: %+v ok=%v", lbl, ok)
	}
}

func TestUndefinedLabelFailsWithoutExterns(t *testing.T) {
	_, err := Assemble("t.s", "jal x1, nowhere\n", false)
	if err == nil || !strings.Contains(err.Error(), "Label not found") {
		t.Fatalf("expected Label not found, got %v", err)
	}
}

func TestUndefinedLabelRecordsRelocationWithExterns(t *testing.T) {
	res, err := Assemble("t.s", "jal x1, nowhere\n", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txt := res.Mem.Find(".text")
	if len(txt.Relocs) != 1 || txt.Relocs[0].Kind != memmap.RelocJAL {
		t.Fatalf("expected one JAL relocation, got %+v", txt.Relocs)
	}
}

func TestDuplicateLabelIsFatal(t *testing.T) {
	_, err := Assemble("t.s", "a: addi x0,x0,0\na: addi x0,x0,0\n", false)
	if err == nil {
		t.Fatalf("expected duplicate label error")
	}
}

func TestByteDirectiveRangeCheck(t *testing.T) {
	_, err := Assemble("t.s", ".section .data\n.byte 300\n", false)
	if err == nil || !strings.Contains(err.Error(), "Out of bounds imm") {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestBuiltinMMIOSymbols(t *testing.T) {
	res, err := Assemble("t.s", ".globl _start\n_start: addi x0,x0,0\n", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base, ok := res.Sym.Lookup("_MMIO_BASE")
	if !ok || base.Addr != memmap.MMIOBase {
		t.Fatalf("missing or wrong _MMIO_BASE: %+v", base)
	}
	dma0, ok := res.Sym.Lookup("_DMA0_CNTL")
	if !ok || dma0.Addr != memmap.MMIOBase+24 {
		t.Fatalf("missing or wrong _DMA0_CNTL: %+v ok=%v", dma0, ok)
	}
}
