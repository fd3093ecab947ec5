package telnet

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

func toLatin1Range(r rune) rune {
	if r > 0xFF {
		return '?'
	}
	return r
}

// Encode renders outbound text for the wire: bare "\n" becomes "\r\n", text
// is encoded as Latin-1 to mirror input decoding (runes above U+00FF become
// '?'), and literal 0xFF bytes are doubled so they are not read as IAC.
func Encode(text string) []byte {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\r\n")

	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(strings.Map(toLatin1Range, text)))
	if err != nil {
		out = []byte(text)
	}
	if bytes.IndexByte(out, IAC) >= 0 {
		out = bytes.ReplaceAll(out, []byte{IAC}, []byte{IAC, IAC})
	}
	return out
}
