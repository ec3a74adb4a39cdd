package linker

import (
	"encoding/binary"
	"testing"

	"github.com/lookbusy1344/rv32toolchain/asm"
	"github.com/lookbusy1344/rv32toolchain/encoder"
	"github.com/lookbusy1344/rv32toolchain/memmap"
	"github.com/lookbusy1344/rv32toolchain/objfile"
)

// buildObject assembles src with externs allowed and packs the result into
// an ET_REL image the way an --assemble invocation would.
func buildObject(t *testing.T, src string) []byte {
	t.Helper()

	res, err := asm.Assemble("t.s", src, true)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var globals []objfile.GlobalSym
	for _, g := range res.Sym.Globals() {
		lbl, ok := res.Sym.Lookup(g.Name)
		if !ok {
			t.Fatalf("global %q declared but never defined", g.Name)
		}
		globals = append(globals, objfile.GlobalSym{Name: g.Name, Addr: lbl.Addr, Section: lbl.Section})
	}

	var externs []objfile.ExternSym
	for _, e := range res.Sym.Externs() {
		externs = append(externs, objfile.ExternSym{Name: e.Name})
	}

	data, err := objfile.WriteObject(res.Mem, globals, externs)
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	return data
}

func TestLinkTwoObjectsResolvesJALAcrossFiles(t *testing.T) {
	callerSrc := ".globl _start\n_start: jal x1, callee\naddi x0, x0, 0\n"
	calleeSrc := ".globl callee\ncallee: addi a0, x0, 7\n"

	caller := buildObject(t, callerSrc)
	callee := buildObject(t, calleeSrc)

	exe, err := Link([][]byte{caller, callee}, "_start")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	loaded, err := objfile.Read(exe)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if loaded.Entry != memmap.TextBase {
		t.Fatalf("entry = 0x%x, want 0x%x", loaded.Entry, memmap.TextBase)
	}

	txt := loaded.Mem.Find(".text")
	word := binary.LittleEndian.Uint32(txt.Contents[0:4])

	// callee sits right after caller's two words: jal(4) + addi(4) = offset 8.
	want, err := encoder.EncodeJAL(encoder.Operands{Rd: 1, Imm: 8})
	if err != nil {
		t.Fatalf("EncodeJAL: %v", err)
	}
	if word != want {
		t.Errorf("jal word = 0x%08x, want 0x%08x", word, want)
	}
}

func TestLinkUndefinedSymbolFails(t *testing.T) {
	src := ".globl _start\n_start: jal x1, missing\n"
	obj := buildObject(t, src)

	if _, err := Link([][]byte{obj}, "_start"); err == nil {
		t.Error("expected an error for an unresolved extern")
	}
}

func TestLinkMissingEntrySymbolFails(t *testing.T) {
	src := "nostart: addi x0, x0, 0\n"
	obj := buildObject(t, src)

	if _, err := Link([][]byte{obj}, "_start"); err == nil {
		t.Error("expected an error when the entry symbol is undefined")
	}
}

func TestLinkConcatenatesDataAcrossObjects(t *testing.T) {
	first := ".globl _start\n_start: addi x0, x0, 0\n.section .data\n.word 0x11111111\n"
	second := ".section .data\n.word 0x22222222\n"

	a := buildObject(t, first)
	b := buildObject(t, second)

	exe, err := Link([][]byte{a, b}, "_start")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	loaded, err := objfile.Read(exe)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data := loaded.Mem.Find(".data")
	if len(data.Contents) < 8 {
		t.Fatalf("expected at least 8 bytes of merged .data, got %d", len(data.Contents))
	}
	first32 := binary.LittleEndian.Uint32(data.Contents[0:4])
	second32 := binary.LittleEndian.Uint32(data.Contents[4:8])
	if first32 != 0x11111111 || second32 != 0x22222222 {
		t.Errorf("merged .data = %08x %08x, want 11111111 22222222", first32, second32)
	}
}
