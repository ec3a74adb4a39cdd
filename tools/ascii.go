package tools

import (
	"fmt"
	"io"
)

// Ascii writes a 16-bytes-per-line dump of r to w with each byte
// rendered as its printable character, a named escape for the common
// control characters, or a bare hex pair otherwise.
func Ascii(w io.Writer, r io.Reader) error {
	fmt.Fprint(w, "[ Offset ]    +00 +01 +02 +03 +04 +05 +06 +07 +08 +09 +10 +11 +12 +13 +14 +15\n")

	var buf [16]byte
	off := uint32(0)
	for {
		n, err := io.ReadFull(r, buf[:])
		if n > 0 {
			fmt.Fprintf(w, "[%08x]    ", off)
			for i := 0; i < n; i++ {
				fmt.Fprint(w, " ")
				fmt.Fprint(w, asciiCell(buf[i]))
				fmt.Fprint(w, " ")
			}
			fmt.Fprintln(w)
			off += uint32(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func asciiCell(c byte) string {
	switch c {
	case 0:
		return "\\0"
	case '\n':
		return "\\n"
	case '\r':
		return "\\r"
	case '\t':
		return "\\t"
	case '\a':
		return "\\a"
	case '\b':
		return "\\b"
	default:
		if c >= 32 && c < 127 {
			return " " + string(c)
		}
		return fmt.Sprintf("%02x", c)
	}
}
