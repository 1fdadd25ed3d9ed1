package chain

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestC32AddressRoundTrip(t *testing.T) {
	var h160 [20]byte
	copy(h160[:], bytes.Repeat([]byte{0x42}, 20))

	for _, version := range []byte{AddressVersionMainnet, AddressVersionTestnet} {
		addr := EncodeC32Address(version, h160)
		require.True(t, strings.HasPrefix(addr, "S"))

		pa, err := DecodeC32Address(addr)
		require.NoError(t, err)
		require.Equal(t, version, pa.Version)
		require.Equal(t, h160, pa.Hash160)
	}
}

func TestC32VersionChars(t *testing.T) {
	var h160 [20]byte
	require.True(t, strings.HasPrefix(EncodeC32Address(AddressVersionMainnet, h160), "SP"))
	require.True(t, strings.HasPrefix(EncodeC32Address(AddressVersionTestnet, h160), "ST"))
}

func TestC32ChecksumRejected(t *testing.T) {
	var h160 [20]byte
	copy(h160[:], bytes.Repeat([]byte{0x42}, 20))
	addr := EncodeC32Address(AddressVersionTestnet, h160)

	// flip one payload char
	broken := []byte(addr)
	if broken[len(broken)-1] == '0' {
		broken[len(broken)-1] = '1'
	} else {
		broken[len(broken)-1] = '0'
	}
	_, err := DecodeC32Address(string(broken))
	require.Error(t, err)
}

func TestC32DecodeMalformed(t *testing.T) {
	_, err := DecodeC32Address("")
	require.Error(t, err)
	_, err = DecodeC32Address("XP000")
	require.Error(t, err)
	_, err = DecodeC32Address("SPU")
	require.Error(t, err)
}

func TestC32LeadingZeroPayload(t *testing.T) {
	var h160 [20]byte // all zero bytes
	addr := EncodeC32Address(AddressVersionMainnet, h160)
	pa, err := DecodeC32Address(addr)
	require.NoError(t, err)
	require.Equal(t, h160, pa.Hash160)
}

func TestSplitContractId(t *testing.T) {
	addr, name, err := SplitContractId("SP123.tweet-registry-v3")
	require.NoError(t, err)
	require.Equal(t, "SP123", addr)
	require.Equal(t, "tweet-registry-v3", name)

	_, _, err = SplitContractId("no-dot-here")
	require.Error(t, err)
	_, _, err = SplitContractId(".name")
	require.Error(t, err)
}
