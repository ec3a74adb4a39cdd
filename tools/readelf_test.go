package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lookbusy1344/rv32toolchain/memmap"
	"github.com/lookbusy1344/rv32toolchain/objfile"
)

func buildExecutableFixture(t *testing.T) []byte {
	t.Helper()

	m := memmap.New()
	text := m.Sections[0]
	if err := text.EmitBytes([]byte{0x13, 0x00, 0x00, 0x00}); err != nil { // nop (addi x0, x0, 0)
		t.Fatalf("EmitBytes: %v", err)
	}

	data, err := objfile.WriteExecutable(m, memmap.TextBase)
	if err != nil {
		t.Fatalf("WriteExecutable: %v", err)
	}
	return data
}

func TestReadelfReportsIdentificationFields(t *testing.T) {
	var out bytes.Buffer
	if err := Readelf(&out, buildExecutableFixture(t)); err != nil {
		t.Fatalf("Readelf: %v", err)
	}

	got := out.String()
	for _, want := range []string{"ELF32", "Little endian", "UNIX - System V", "Executable", "RISC-V"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestReadelfListsSectionAndProgramHeaders(t *testing.T) {
	var out bytes.Buffer
	if err := Readelf(&out, buildExecutableFixture(t)); err != nil {
		t.Fatalf("Readelf: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Section headers:") {
		t.Errorf("expected a section header table, got:\n%s", got)
	}
	if !strings.Contains(got, "Program headers:") {
		t.Errorf("expected a program header table, got:\n%s", got)
	}
	if !strings.Contains(got, ".text") {
		t.Errorf("expected .text section name, got:\n%s", got)
	}
	if !strings.Contains(got, "LOAD") {
		t.Errorf("expected a LOAD segment, got:\n%s", got)
	}
}

func TestReadelfRejectsBadMagic(t *testing.T) {
	bad := make([]byte, objfile.ELFHeaderSize)
	copy(bad, "not an elf!")

	if err := Readelf(&bytes.Buffer{}, bad); err == nil {
		t.Error("expected an error for bad magic bytes")
	}
}

func TestReadelfRejectsShortInput(t *testing.T) {
	if err := Readelf(&bytes.Buffer{}, []byte{0x7F, 'E', 'L', 'F'}); err == nil {
		t.Error("expected an error for a truncated header")
	}
}
