// Package encoding decodes header text written by tools that predate UTF-8.
package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Legacy encodings tried, in order, for text that is not valid UTF-8. The
// last one maps every byte, so decoding always succeeds.
var Legacy = []encoding.Encoding{
	korean.EUCKR,
	charmap.Windows1252,
}

// ToUTF8 decodes data with enc. It reports false if the decoder failed or
// had to substitute a replacement character.
func ToUTF8(data []byte, enc encoding.Encoding) (string, bool) {
	result, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", false
	}
	s := string(result)
	if strings.ContainsRune(s, utf8.RuneError) {
		return s, false
	}
	return s, true
}

// HeaderText returns data as a string. Valid UTF-8 is returned as is;
// anything else is decoded with the first legacy encoding that takes it
// cleanly.
func HeaderText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	for _, enc := range Legacy {
		if s, ok := ToUTF8(data, enc); ok {
			return s
		}
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
