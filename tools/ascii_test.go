package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestAsciiPrintableCharactersShowAsThemselves(t *testing.T) {
	data := []byte("Hello, RISC-V!!!")

	var out bytes.Buffer
	if err := Ascii(&out, bytes.NewReader(data)); err != nil {
		t.Fatalf("Ascii: %v", err)
	}

	if !strings.Contains(out.String(), " H") {
		t.Errorf("expected printable cell ' H', got %q", out.String())
	}
}

func TestAsciiNamedEscapesForControlCharacters(t *testing.T) {
	data := []byte{0, '\n', '\r', '\t', '\a', '\b'}
	data = append(data, bytes.Repeat([]byte{' '}, 10)...)

	var out bytes.Buffer
	if err := Ascii(&out, bytes.NewReader(data)); err != nil {
		t.Fatalf("Ascii: %v", err)
	}

	for _, esc := range []string{"\\0", "\\n", "\\r", "\\t", "\\a", "\\b"} {
		if !strings.Contains(out.String(), esc) {
			t.Errorf("expected escape %q in output, got %q", esc, out.String())
		}
	}
}

func TestAsciiNonPrintableFallsBackToHexPair(t *testing.T) {
	data := []byte{0x01, 0x7F, 0xFF}

	var out bytes.Buffer
	if err := Ascii(&out, bytes.NewReader(data)); err != nil {
		t.Fatalf("Ascii: %v", err)
	}

	for _, pair := range []string{"01", "7f", "ff"} {
		if !strings.Contains(out.String(), pair) {
			t.Errorf("expected hex pair %q in output, got %q", pair, out.String())
		}
	}
}

func TestAsciiCellTable(t *testing.T) {
	cases := map[byte]string{
		0:    "\\0",
		'\n': "\\n",
		'A':  " A",
		0x1F: "1f",
	}
	for in, want := range cases {
		if got := asciiCell(in); got != want {
			t.Errorf("asciiCell(%#x) = %q, want %q", in, got, want)
		}
	}
}
