package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	require.Equal(t, "a b c", NormalizeContent("  a  b\tc  "))
	require.Equal(t, "a b", NormalizeContent("a\r\n\t b"))
	require.Equal(t, "", NormalizeContent("   \t\n "))
	require.Equal(t, "solo", NormalizeContent("solo"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Just launched my new startup! 🚀",
		"  spaced   out \t input \n",
		"nothing to do here",
	}
	for _, s := range inputs {
		require.Equal(t, HashContent(s), HashContent(NormalizeContent(s)))
	}
}

func TestHashWhitespaceEquivalence(t *testing.T) {
	a := HashContent("Just launched my new startup! 🚀")
	b := HashContent("Just   launched my new startup! 🚀  ")
	require.Equal(t, a, b)
	require.Len(t, a, HashLen)
}

func TestDecodeHashHex(t *testing.T) {
	h := HashContent("hello")
	hexStr := hex.EncodeToString(h[:])

	raw, err := DecodeHashHex(hexStr)
	require.NoError(t, err)
	require.Equal(t, h[:], raw)

	raw, err = DecodeHashHex("0x" + hexStr)
	require.NoError(t, err)
	require.Equal(t, h[:], raw)

	_, err = DecodeHashHex("abcd")
	require.Error(t, err)

	_, err = DecodeHashHex("zz" + hexStr[2:])
	require.Error(t, err)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "short", Preview("short", 10))
	require.Equal(t, "lon...", Preview("longer content", 3))
	require.Equal(t, "🚀🚀...", Preview("🚀🚀🚀🚀", 2))
}
