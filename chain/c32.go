package chain

import (
	"crypto/sha256"
	"math/big"
	"strings"

	"tweetstamp-node/types"
)

// c32check address codec. Chain addresses are Crockford base32 with a
// version char and a 4-byte double-sha256 checksum, prefixed with 'S'.

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	AddressVersionMainnet byte = 22 // 'P'
	AddressVersionTestnet byte = 26 // 'T'
)

var c32Lookup = func() map[rune]int {
	m := make(map[rune]int, 40)
	for i, c := range c32Alphabet {
		m[c] = i
	}
	// Crockford ambiguity folding.
	m['O'] = 0
	m['L'] = 1
	m['I'] = 1
	return m
}()

func c32Checksum(version byte, payload []byte) []byte {
	data := append([]byte{version}, payload...)
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func c32Encode(data []byte) string {
	leadingZeros := 0
	for _, b := range data {
		if b != 0 {
			break
		}
		leadingZeros++
	}
	n := new(big.Int).SetBytes(data)
	var out []byte
	zero := big.NewInt(0)
	base := big.NewInt(32)
	mod := new(big.Int)
	for n.Cmp(zero) > 0 {
		n.DivMod(n, base, mod)
		out = append(out, c32Alphabet[mod.Int64()])
	}
	for i := 0; i < leadingZeros; i++ {
		out = append(out, '0')
	}
	// digits were produced least-significant first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func c32Decode(s string, byteLen int) ([]byte, error) {
	leadingZeros := 0
	for _, c := range s {
		if c != '0' && c != 'O' {
			break
		}
		leadingZeros++
	}
	n := big.NewInt(0)
	base := big.NewInt(32)
	for _, c := range strings.ToUpper(s) {
		d, ok := c32Lookup[c]
		if !ok {
			return nil, types.Wrapf(types.ErrInvalidAddress, "invalid c32 character %q", c)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}
	raw := n.Bytes()
	padded := make([]byte, byteLen)
	if leadingZeros+len(raw) > byteLen {
		return nil, types.Wrapf(types.ErrInvalidAddress, "c32 payload overflows %d bytes", byteLen)
	}
	copy(padded[byteLen-len(raw):], raw)
	return padded, nil
}

// EncodeC32Address renders a principal as its address string.
func EncodeC32Address(version byte, hash160 [20]byte) string {
	checksum := c32Checksum(version, hash160[:])
	payload := append(hash160[:], checksum...)
	return "S" + string(c32Alphabet[version]) + c32Encode(payload)
}

// DecodeC32Address parses an address string back into version + hash160,
// verifying the checksum.
func DecodeC32Address(addr string) (PrincipalAddr, error) {
	var pa PrincipalAddr
	addr = strings.TrimSpace(addr)
	if len(addr) < 7 || (addr[0] != 'S' && addr[0] != 's') {
		return pa, types.Wrapf(types.ErrInvalidAddress, "malformed address %q", addr)
	}
	verIdx, ok := c32Lookup[rune(strings.ToUpper(addr)[1])]
	if !ok {
		return pa, types.Wrapf(types.ErrInvalidAddress, "bad version char in %q", addr)
	}
	payload, err := c32Decode(addr[2:], 24)
	if err != nil {
		return pa, err
	}
	var hash160 [20]byte
	copy(hash160[:], payload[:20])
	expect := c32Checksum(byte(verIdx), hash160[:])
	for i := 0; i < 4; i++ {
		if payload[20+i] != expect[i] {
			return pa, types.Wrapf(types.ErrInvalidAddress, "checksum mismatch in %q", addr)
		}
	}
	pa.Version = byte(verIdx)
	pa.Hash160 = hash160
	return pa, nil
}

// SplitContractId splits "ADDR.contract-name" lookup coordinates.
func SplitContractId(id string) (string, string, error) {
	parts := strings.SplitN(id, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", types.Wrapf(types.ErrInvalidAddress, "malformed contract id %q", id)
	}
	return parts[0], parts[1], nil
}
