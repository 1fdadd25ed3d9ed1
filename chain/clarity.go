package chain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"sort"
	"strings"

	"tweetstamp-node/types"
)

// Clarity consensus serialization, the wire form the contract RPC speaks.
// Arguments to call-read and contract-call payloads are hex strings of this
// encoding; results decode back into ClarityValue trees.

type ClarityType byte

const (
	ClarityTypeInt               ClarityType = 0x00
	ClarityTypeUInt              ClarityType = 0x01
	ClarityTypeBuffer            ClarityType = 0x02
	ClarityTypeBoolTrue          ClarityType = 0x03
	ClarityTypeBoolFalse         ClarityType = 0x04
	ClarityTypeStandardPrincipal ClarityType = 0x05
	ClarityTypeContractPrincipal ClarityType = 0x06
	ClarityTypeResponseOk        ClarityType = 0x07
	ClarityTypeResponseErr       ClarityType = 0x08
	ClarityTypeOptionalNone      ClarityType = 0x09
	ClarityTypeOptionalSome      ClarityType = 0x0a
	ClarityTypeList              ClarityType = 0x0b
	ClarityTypeTuple             ClarityType = 0x0c
	ClarityTypeStringAscii       ClarityType = 0x0d
	ClarityTypeStringUtf8        ClarityType = 0x0e
)

const (
	maxClarityDepth   = 32
	maxClarityNameLen = 128
)

// signed 128-bit bounds for the int type; the wire form is two's complement
var (
	clarityIntMod = new(big.Int).Lsh(big.NewInt(1), 128)
	clarityIntMin = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	clarityIntMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

type ClarityValue struct {
	Type ClarityType

	Int    *big.Int                 // int, uint
	Buffer []byte                   // buffer
	Str    string                   // string-ascii, string-utf8, contract name part
	Addr   PrincipalAddr            // principals
	Inner  *ClarityValue            // response ok/err, optional some
	List   []*ClarityValue          // list
	Tuple  map[string]*ClarityValue // tuple
}

// PrincipalAddr is the decoded form of a c32check address.
type PrincipalAddr struct {
	Version byte
	Hash160 [20]byte
}

func UintCV(v uint64) *ClarityValue {
	return &ClarityValue{Type: ClarityTypeUInt, Int: new(big.Int).SetUint64(v)}
}

func IntCV(v int64) *ClarityValue {
	return &ClarityValue{Type: ClarityTypeInt, Int: big.NewInt(v)}
}

func BoolCV(v bool) *ClarityValue {
	if v {
		return &ClarityValue{Type: ClarityTypeBoolTrue}
	}
	return &ClarityValue{Type: ClarityTypeBoolFalse}
}

func BuffCV(b []byte) *ClarityValue {
	buf := make([]byte, len(b))
	copy(buf, b)
	return &ClarityValue{Type: ClarityTypeBuffer, Buffer: buf}
}

func StringAsciiCV(s string) *ClarityValue {
	return &ClarityValue{Type: ClarityTypeStringAscii, Str: s}
}

func ListCV(items ...*ClarityValue) *ClarityValue {
	return &ClarityValue{Type: ClarityTypeList, List: items}
}

func PrincipalCV(addr string) (*ClarityValue, error) {
	pa, err := DecodeC32Address(addr)
	if err != nil {
		return nil, err
	}
	return &ClarityValue{Type: ClarityTypeStandardPrincipal, Addr: pa}, nil
}

// Bool returns the boolean payload, unwrapping responses and optionals.
// none and (err ...) read as false.
func (v *ClarityValue) Bool() bool {
	switch v.Type {
	case ClarityTypeBoolTrue:
		return true
	case ClarityTypeBoolFalse, ClarityTypeOptionalNone, ClarityTypeResponseErr:
		return false
	case ClarityTypeResponseOk, ClarityTypeOptionalSome:
		return v.Inner.Bool()
	}
	return false
}

// Unwrap strips response-ok and optional-some wrappers. The second return is
// false for none and (err ...).
func (v *ClarityValue) Unwrap() (*ClarityValue, bool) {
	cur := v
	for i := 0; i < maxClarityDepth; i++ {
		switch cur.Type {
		case ClarityTypeResponseOk, ClarityTypeOptionalSome:
			cur = cur.Inner
		case ClarityTypeOptionalNone, ClarityTypeResponseErr:
			return cur, false
		default:
			return cur, true
		}
	}
	return cur, false
}

func (v *ClarityValue) Uint() uint64 {
	if v.Int == nil {
		return 0
	}
	return v.Int.Uint64()
}

func (v *ClarityValue) TupleField(name string) *ClarityValue {
	if v.Tuple == nil {
		return nil
	}
	return v.Tuple[name]
}

func (v *ClarityValue) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCV(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeHex renders the value as a 0x-prefixed hex string for RPC arguments.
func (v *ClarityValue) EncodeHex() (string, error) {
	raw, err := v.Encode()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw), nil
}

func encodeCV(buf *bytes.Buffer, v *ClarityValue, depth int) error {
	if depth > maxClarityDepth {
		return types.Wrapf(types.ErrEncodeClarityFailed, "value nesting too deep")
	}
	buf.WriteByte(byte(v.Type))
	switch v.Type {
	case ClarityTypeInt:
		if v.Int == nil || v.Int.Cmp(clarityIntMin) < 0 || v.Int.Cmp(clarityIntMax) > 0 {
			return types.Wrapf(types.ErrEncodeClarityFailed, "integer out of range")
		}
		n := v.Int
		if n.Sign() < 0 {
			n = new(big.Int).Add(n, clarityIntMod)
		}
		var word [16]byte
		n.FillBytes(word[:])
		buf.Write(word[:])
	case ClarityTypeUInt:
		if v.Int == nil || v.Int.Sign() < 0 || v.Int.BitLen() > 128 {
			return types.Wrapf(types.ErrEncodeClarityFailed, "integer out of range")
		}
		var word [16]byte
		v.Int.FillBytes(word[:])
		buf.Write(word[:])
	case ClarityTypeBuffer:
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(v.Buffer)))
		buf.Write(l[:])
		buf.Write(v.Buffer)
	case ClarityTypeBoolTrue, ClarityTypeBoolFalse, ClarityTypeOptionalNone:
		// tag only
	case ClarityTypeStandardPrincipal:
		buf.WriteByte(v.Addr.Version)
		buf.Write(v.Addr.Hash160[:])
	case ClarityTypeContractPrincipal:
		if len(v.Str) == 0 || len(v.Str) > maxClarityNameLen {
			return types.Wrapf(types.ErrEncodeClarityFailed, "bad contract name length %d", len(v.Str))
		}
		buf.WriteByte(v.Addr.Version)
		buf.Write(v.Addr.Hash160[:])
		buf.WriteByte(byte(len(v.Str)))
		buf.WriteString(v.Str)
	case ClarityTypeResponseOk, ClarityTypeResponseErr, ClarityTypeOptionalSome:
		if v.Inner == nil {
			return types.Wrapf(types.ErrEncodeClarityFailed, "missing wrapped value")
		}
		if err := encodeCV(buf, v.Inner, depth+1); err != nil {
			return err
		}
	case ClarityTypeList:
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(v.List)))
		buf.Write(l[:])
		for _, item := range v.List {
			if err := encodeCV(buf, item, depth+1); err != nil {
				return err
			}
		}
	case ClarityTypeTuple:
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(v.Tuple)))
		buf.Write(l[:])
		names := make([]string, 0, len(v.Tuple))
		for name := range v.Tuple {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if len(name) == 0 || len(name) > maxClarityNameLen {
				return types.Wrapf(types.ErrEncodeClarityFailed, "bad tuple key %q", name)
			}
			buf.WriteByte(byte(len(name)))
			buf.WriteString(name)
			if err := encodeCV(buf, v.Tuple[name], depth+1); err != nil {
				return err
			}
		}
	case ClarityTypeStringAscii, ClarityTypeStringUtf8:
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(v.Str)))
		buf.Write(l[:])
		buf.WriteString(v.Str)
	default:
		return types.Wrapf(types.ErrEncodeClarityFailed, "unknown clarity type 0x%02x", byte(v.Type))
	}
	return nil
}

// DecodeClarityHex decodes a 0x-prefixed hex result string from the RPC.
func DecodeClarityHex(s string) (*ClarityValue, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, types.Wrap(types.ErrDecodeClarityFailed, err)
	}
	v, rest, err := decodeCV(raw, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, types.Wrapf(types.ErrDecodeClarityFailed, "%d trailing bytes", len(rest))
	}
	return v, nil
}

func decodeCV(raw []byte, depth int) (*ClarityValue, []byte, error) {
	if depth > maxClarityDepth {
		return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "value nesting too deep")
	}
	if len(raw) < 1 {
		return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated value")
	}
	t := ClarityType(raw[0])
	raw = raw[1:]
	v := &ClarityValue{Type: t}

	switch t {
	case ClarityTypeInt, ClarityTypeUInt:
		if len(raw) < 16 {
			return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated integer")
		}
		v.Int = new(big.Int).SetBytes(raw[:16])
		if t == ClarityTypeInt && raw[0]&0x80 != 0 {
			v.Int.Sub(v.Int, clarityIntMod)
		}
		raw = raw[16:]
	case ClarityTypeBuffer:
		n, rest, err := readLen(raw)
		if err != nil {
			return nil, nil, err
		}
		v.Buffer = append([]byte(nil), rest[:n]...)
		raw = rest[n:]
	case ClarityTypeBoolTrue, ClarityTypeBoolFalse, ClarityTypeOptionalNone:
		// tag only
	case ClarityTypeStandardPrincipal:
		if len(raw) < 21 {
			return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated principal")
		}
		v.Addr.Version = raw[0]
		copy(v.Addr.Hash160[:], raw[1:21])
		raw = raw[21:]
	case ClarityTypeContractPrincipal:
		if len(raw) < 22 {
			return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated contract principal")
		}
		v.Addr.Version = raw[0]
		copy(v.Addr.Hash160[:], raw[1:21])
		nameLen := int(raw[21])
		raw = raw[22:]
		if len(raw) < nameLen {
			return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated contract name")
		}
		v.Str = string(raw[:nameLen])
		raw = raw[nameLen:]
	case ClarityTypeResponseOk, ClarityTypeResponseErr, ClarityTypeOptionalSome:
		inner, rest, err := decodeCV(raw, depth+1)
		if err != nil {
			return nil, nil, err
		}
		v.Inner = inner
		raw = rest
	case ClarityTypeList:
		n, rest, err := readCount(raw)
		if err != nil {
			return nil, nil, err
		}
		raw = rest
		v.List = make([]*ClarityValue, 0, n)
		for i := uint32(0); i < n; i++ {
			item, rest, err := decodeCV(raw, depth+1)
			if err != nil {
				return nil, nil, err
			}
			v.List = append(v.List, item)
			raw = rest
		}
	case ClarityTypeTuple:
		n, rest, err := readCount(raw)
		if err != nil {
			return nil, nil, err
		}
		raw = rest
		v.Tuple = make(map[string]*ClarityValue, n)
		for i := uint32(0); i < n; i++ {
			if len(raw) < 1 {
				return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated tuple key")
			}
			nameLen := int(raw[0])
			raw = raw[1:]
			if len(raw) < nameLen {
				return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated tuple key")
			}
			name := string(raw[:nameLen])
			raw = raw[nameLen:]
			item, rest, err := decodeCV(raw, depth+1)
			if err != nil {
				return nil, nil, err
			}
			v.Tuple[name] = item
			raw = rest
		}
	case ClarityTypeStringAscii, ClarityTypeStringUtf8:
		n, rest, err := readLen(raw)
		if err != nil {
			return nil, nil, err
		}
		v.Str = string(rest[:n])
		raw = rest[n:]
	default:
		return nil, nil, types.Wrapf(types.ErrDecodeClarityFailed, "unknown clarity type 0x%02x", byte(t))
	}
	return v, raw, nil
}

func readCount(raw []byte) (uint32, []byte, error) {
	if len(raw) < 4 {
		return 0, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated count")
	}
	n := binary.BigEndian.Uint32(raw[:4])
	rest := raw[4:]
	// every element takes at least one byte, so a count past the remaining
	// input is malformed; this also bounds the preallocation below
	if uint64(n) > uint64(len(rest)) {
		return 0, nil, types.Wrapf(types.ErrDecodeClarityFailed, "count %d exceeds remaining %d bytes", n, len(rest))
	}
	return n, rest, nil
}

func readLen(raw []byte) (int, []byte, error) {
	if len(raw) < 4 {
		return 0, nil, types.Wrapf(types.ErrDecodeClarityFailed, "truncated length")
	}
	n := int(binary.BigEndian.Uint32(raw[:4]))
	rest := raw[4:]
	if len(rest) < n {
		return 0, nil, types.Wrapf(types.ErrDecodeClarityFailed, "length %d exceeds remaining %d", n, len(rest))
	}
	return n, rest, nil
}
