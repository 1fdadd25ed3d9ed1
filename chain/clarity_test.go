package chain

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v *ClarityValue) *ClarityValue {
	t.Helper()
	h, err := v.EncodeHex()
	require.NoError(t, err)
	out, err := DecodeClarityHex(h)
	require.NoError(t, err)
	return out
}

func TestClarityUintRoundTrip(t *testing.T) {
	out := roundTrip(t, UintCV(123456789))
	require.Equal(t, ClarityTypeUInt, out.Type)
	require.Equal(t, uint64(123456789), out.Uint())

	out = roundTrip(t, UintCV(0))
	require.Equal(t, uint64(0), out.Uint())
}

func TestClarityIntRoundTrip(t *testing.T) {
	out := roundTrip(t, IntCV(-42))
	require.Equal(t, ClarityTypeInt, out.Type)
	require.Equal(t, int64(-42), out.Int.Int64())

	out = roundTrip(t, IntCV(42))
	require.Equal(t, int64(42), out.Int.Int64())

	// -1 is all ones on the wire
	h, err := IntCV(-1).EncodeHex()
	require.NoError(t, err)
	require.Equal(t, "0x00"+"ffffffffffffffffffffffffffffffff", h)

	out = roundTrip(t, &ClarityValue{Type: ClarityTypeInt, Int: new(big.Int).Set(clarityIntMin)})
	require.Equal(t, 0, out.Int.Cmp(clarityIntMin))

	// one past either bound does not encode
	over := &ClarityValue{Type: ClarityTypeInt, Int: new(big.Int).Add(clarityIntMax, big.NewInt(1))}
	_, err = over.EncodeHex()
	require.Error(t, err)
	under := &ClarityValue{Type: ClarityTypeInt, Int: new(big.Int).Sub(clarityIntMin, big.NewInt(1))}
	_, err = under.EncodeHex()
	require.Error(t, err)
}

func TestClarityBuffRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 32)
	out := roundTrip(t, BuffCV(payload))
	require.Equal(t, ClarityTypeBuffer, out.Type)
	require.Equal(t, payload, out.Buffer)
}

func TestClarityBoolEncoding(t *testing.T) {
	h, err := BoolCV(true).EncodeHex()
	require.NoError(t, err)
	require.Equal(t, "0x03", h)

	h, err = BoolCV(false).EncodeHex()
	require.NoError(t, err)
	require.Equal(t, "0x04", h)
}

func TestClarityPrincipalRoundTrip(t *testing.T) {
	var h160 [20]byte
	copy(h160[:], bytes.Repeat([]byte{0x11}, 20))
	addr := EncodeC32Address(AddressVersionTestnet, h160)

	cv, err := PrincipalCV(addr)
	require.NoError(t, err)
	out := roundTrip(t, cv)
	require.Equal(t, ClarityTypeStandardPrincipal, out.Type)
	require.Equal(t, addr, EncodeC32Address(out.Addr.Version, out.Addr.Hash160))
}

func TestClarityTupleSortedKeys(t *testing.T) {
	v := &ClarityValue{
		Type: ClarityTypeTuple,
		Tuple: map[string]*ClarityValue{
			"zeta":  UintCV(2),
			"alpha": UintCV(1),
		},
	}
	raw, err := v.Encode()
	require.NoError(t, err)
	// alpha must serialize before zeta regardless of map order
	require.Less(t, bytes.Index(raw, []byte("alpha")), bytes.Index(raw, []byte("zeta")))

	out := roundTrip(t, v)
	require.Equal(t, uint64(1), out.TupleField("alpha").Uint())
	require.Equal(t, uint64(2), out.TupleField("zeta").Uint())
}

func TestClarityListRoundTrip(t *testing.T) {
	v := ListCV(UintCV(1), UintCV(2), UintCV(3))
	out := roundTrip(t, v)
	require.Len(t, out.List, 3)
	require.Equal(t, uint64(2), out.List[1].Uint())
}

func TestClarityUnwrap(t *testing.T) {
	wrapped := &ClarityValue{
		Type: ClarityTypeResponseOk,
		Inner: &ClarityValue{
			Type:  ClarityTypeOptionalSome,
			Inner: BoolCV(true),
		},
	}
	inner, ok := wrapped.Unwrap()
	require.True(t, ok)
	require.Equal(t, ClarityTypeBoolTrue, inner.Type)
	require.True(t, wrapped.Bool())

	none := &ClarityValue{Type: ClarityTypeOptionalNone}
	_, ok = none.Unwrap()
	require.False(t, ok)
	require.False(t, none.Bool())
}

func TestClarityStringAsciiRoundTrip(t *testing.T) {
	out := roundTrip(t, StringAsciiCV("tweet"))
	require.Equal(t, "tweet", out.Str)
}

func TestClarityDecodeErrors(t *testing.T) {
	_, err := DecodeClarityHex("0x")
	require.Error(t, err)

	// buffer claiming more bytes than present
	_, err = DecodeClarityHex("0x02000000ffaa")
	require.Error(t, err)

	// unknown type tag
	_, err = DecodeClarityHex("0xff")
	require.Error(t, err)

	// trailing garbage after a valid value
	h, err := BoolCV(true).EncodeHex()
	require.NoError(t, err)
	_, err = DecodeClarityHex(h + "00")
	require.Error(t, err)

	// list claiming far more elements than the input could hold
	_, err = DecodeClarityHex("0x0bffffffff03")
	require.Error(t, err)

	// same for a tuple count
	_, err = DecodeClarityHex("0x0c7fffffff")
	require.Error(t, err)
}

func TestClarityDecodeTupleFromRawHex(t *testing.T) {
	v := &ClarityValue{
		Type: ClarityTypeTuple,
		Tuple: map[string]*ClarityValue{
			"block-height": UintCV(4242),
			"exists":       BoolCV(true),
		},
	}
	raw, err := v.Encode()
	require.NoError(t, err)

	out, err := DecodeClarityHex(hex.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, uint64(4242), out.TupleField("block-height").Uint())
	require.True(t, out.TupleField("exists").Bool())
}
