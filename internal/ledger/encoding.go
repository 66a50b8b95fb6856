package ledger

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText decodes raw ledger bytes as UTF-8, falling back to the legacy
// windows-1251 encoding when the UTF-8 result is broken or carries no
// Cyrillic at all. Provider exports predate the UTF-8 switch and archived
// ones still arrive in the single-byte encoding.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	s := string(raw)
	if utf8.Valid(raw) && !strings.ContainsRune(s, utf8.RuneError) && containsCyrillic(s) {
		return s
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return s
	}
	return string(decoded)
}

func containsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
