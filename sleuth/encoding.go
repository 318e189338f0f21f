package sleuth

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText turns raw upload bytes into NFC normalized text. Files exported
// on Windows are often UTF-16 with a byte order mark or Windows-1252; both are
// converted. Anything else is read as UTF-8.
func DecodeText(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, utf8BOM):
		raw = raw[len(utf8BOM):]
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), raw)
		if err != nil {
			return "", fmt.Errorf("decode utf-16: %w", err)
		}
		raw = out
	case !utf8.Valid(raw):
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
		if err != nil {
			return "", fmt.Errorf("decode windows-1252: %w", err)
		}
		raw = out
	}
	return norm.NFC.String(strings.TrimPrefix(string(raw), "\uFEFF")), nil
}
