package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"tweetstamp-node/types"
)

const HashLen = 32

// NormalizeContent trims the input and collapses every whitespace run to a
// single space. Every code path that derives a hash from raw text has to go
// through this, otherwise hash equality between independently submitted
// identical content breaks.
func NormalizeContent(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	inSpace := false
	for _, r := range strings.TrimSpace(content) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HashContent returns the sha256 digest of the normalized content.
func HashContent(content string) [HashLen]byte {
	return sha256.Sum256([]byte(NormalizeContent(content)))
}

// HashContentHex returns the digest rendered as lowercase hex.
func HashContentHex(content string) string {
	h := HashContent(content)
	return hex.EncodeToString(h[:])
}

// DecodeHashHex parses a hex hash string, tolerating an optional 0x prefix.
// Already-hashed input bypasses normalization entirely.
func DecodeHashHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil, types.Wrap(types.ErrInvalidHash, err)
	}
	if len(raw) != HashLen {
		return nil, types.Wrapf(types.ErrInvalidHash, "expected %d bytes, got %d", HashLen, len(raw))
	}
	return raw, nil
}

// EncodeHashHex renders raw hash bytes as lowercase hex.
func EncodeHashHex(h []byte) string {
	return hex.EncodeToString(h)
}

// Preview truncates normalized content for the stored record, keeping rune
// boundaries intact.
func Preview(content string, max int) string {
	n := NormalizeContent(content)
	runes := []rune(n)
	if len(runes) <= max {
		return n
	}
	return string(runes[:max]) + "..."
}
