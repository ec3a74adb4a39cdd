package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestHexdumpGroupsFourByteColumns(t *testing.T) {
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}

	var out bytes.Buffer
	if err := Hexdump(&out, bytes.NewReader(data)); err != nil {
		t.Fatalf("Hexdump: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 data line, got %d lines: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "[00000000]") {
		t.Errorf("expected offset gutter, got %q", lines[1])
	}
	if !strings.Contains(lines[1], "00010203") {
		t.Errorf("expected first 4-byte column 00010203, got %q", lines[1])
	}
	if !strings.Contains(lines[1], "0c0d0e0f") {
		t.Errorf("expected last 4-byte column 0c0d0e0f, got %q", lines[1])
	}
}

func TestHexdumpHandlesPartialFinalLine(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC}

	var out bytes.Buffer
	if err := Hexdump(&out, bytes.NewReader(data)); err != nil {
		t.Fatalf("Hexdump: %v", err)
	}

	if !strings.Contains(out.String(), "aabbcc") {
		t.Errorf("expected partial column aabbcc, got %q", out.String())
	}
}

func TestHexdumpEmptyInputOnlyEmitsHeader(t *testing.T) {
	var out bytes.Buffer
	if err := Hexdump(&out, bytes.NewReader(nil)); err != nil {
		t.Fatalf("Hexdump: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("expected only the header line for empty input, got %q", out.String())
	}
}
