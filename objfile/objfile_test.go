package objfile

import (
	"bytes"
	"testing"

	"github.com/lookbusy1344/rv32toolchain/asm"
)

func TestRoundTripExecutable(t *testing.T) {
	src := ".globl _start\n_start: addi a0, x0, 5\nli a7, 93\necall\n"
	res, err := asm.Assemble("t.s", src, false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	raw, err := WriteExecutable(res.Mem, res.EntryPC)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := Read(raw)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.Entry != res.EntryPC {
		t.Fatalf("entry mismatch: got 0x%x want 0x%x", loaded.Entry, res.EntryPC)
	}
	txtBefore := res.Mem.Find(".text")
	txtAfter := loaded.Mem.Find(".text")
	if txtAfter == nil {
		t.Fatalf("missing .text after load")
	}
	if txtBefore.Base != txtAfter.Base {
		t.Fatalf("base mismatch: %x vs %x", txtBefore.Base, txtAfter.Base)
	}
	if !bytes.Equal(txtBefore.Contents, txtAfter.Contents) {
		t.Fatalf("contents mismatch")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	if _, err := Read([]byte{0, 0, 0, 0}); err == nil {
		t.Fatalf("expected error on bad magic")
	}
}
