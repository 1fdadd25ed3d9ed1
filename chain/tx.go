package chain

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"

	"tweetstamp-node/types"
)

// Single-sig contract-call transaction wire format and signing. Only the
// subset the gateway submits is implemented: standard auth, p2pkh spending
// condition, deny post-condition mode with no post conditions.

const (
	authTypeStandard    byte = 0x04
	hashModeP2PKH       byte = 0x00
	keyEncodeCompressed byte = 0x00
	anchorModeAny       byte = 0x03
	postConditionDeny   byte = 0x02
	payloadContractCall byte = 0x02
)

type txNetwork struct {
	TxVersion   byte
	ChainId     uint32
	AddrVersion byte
}

var txNetworks = map[string]txNetwork{
	"mainnet": {TxVersion: 0x00, ChainId: 0x00000001, AddrVersion: AddressVersionMainnet},
	"testnet": {TxVersion: 0x80, ChainId: 0x80000000, AddrVersion: AddressVersionTestnet},
}

type contractCallTx struct {
	network  txNetwork
	signer   [20]byte
	nonce    uint64
	fee      uint64
	sig      [65]byte
	contract PrincipalAddr
	name     string
	function string
	args     []*ClarityValue
}

func hash160(b []byte) [20]byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

func parseSenderKey(senderKey string) (*secp256k1.PrivateKey, error) {
	k := strings.TrimSpace(senderKey)
	// the conventional trailing 01 marks a compressed pubkey
	if len(k) == 66 && strings.HasSuffix(k, "01") {
		k = k[:64]
	}
	raw, err := hex.DecodeString(k)
	if err != nil || len(raw) != 32 {
		return nil, types.Wrapf(types.ErrTxBuildFailed, "malformed signing key")
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// SenderAddress derives the c32 address a signing key spends from.
func SenderAddress(senderKey string, network string) (string, error) {
	net, ok := txNetworks[network]
	if !ok {
		return "", types.Wrapf(types.ErrTxBuildFailed, "unknown network %q", network)
	}
	priv, err := parseSenderKey(senderKey)
	if err != nil {
		return "", err
	}
	h := hash160(priv.PubKey().SerializeCompressed())
	return EncodeC32Address(net.AddrVersion, h), nil
}

// RecoverSignerAddress recovers the c32 address that produced a compact
// recoverable signature over sha256(message). Both compact layouts seen in
// the wild are accepted: header-first [27+recid, r, s] and trailing-recid
// [r, s, recid].
func RecoverSignerAddress(network string, message string, sigHex string) (string, error) {
	net, ok := txNetworks[network]
	if !ok {
		return "", types.Wrapf(types.ErrInvalidAddress, "unknown network %q", network)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(sigHex), "0x"))
	if err != nil || len(raw) != 65 {
		return "", types.Wrapf(types.ErrInvalidAddress, "malformed signature")
	}
	digest := sha256.Sum256([]byte(message))

	pub, _, err := ecdsa.RecoverCompact(raw, digest[:])
	if err != nil {
		// retry as [r, s, recid]
		flipped := make([]byte, 65)
		flipped[0] = raw[64] + 27
		copy(flipped[1:], raw[:64])
		if pub, _, err = ecdsa.RecoverCompact(flipped, digest[:]); err != nil {
			return "", types.Wrapf(types.ErrInvalidAddress, "signature recovery failed")
		}
	}
	return EncodeC32Address(net.AddrVersion, hash160(pub.SerializeCompressed())), nil
}

func (t *contractCallTx) serialize(cleared bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(t.network.TxVersion)
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], t.network.ChainId)
	buf.Write(u4[:])

	buf.WriteByte(authTypeStandard)
	buf.WriteByte(hashModeP2PKH)
	buf.Write(t.signer[:])
	var u8 [8]byte
	if cleared {
		buf.Write(make([]byte, 16)) // zeroed nonce + fee
	} else {
		binary.BigEndian.PutUint64(u8[:], t.nonce)
		buf.Write(u8[:])
		binary.BigEndian.PutUint64(u8[:], t.fee)
		buf.Write(u8[:])
	}
	buf.WriteByte(keyEncodeCompressed)
	if cleared {
		buf.Write(make([]byte, 65))
	} else {
		buf.Write(t.sig[:])
	}

	buf.WriteByte(anchorModeAny)
	buf.WriteByte(postConditionDeny)
	buf.Write(make([]byte, 4)) // no post conditions

	buf.WriteByte(payloadContractCall)
	buf.WriteByte(t.contract.Version)
	buf.Write(t.contract.Hash160[:])
	if len(t.name) == 0 || len(t.name) > maxClarityNameLen {
		return nil, types.Wrapf(types.ErrTxBuildFailed, "bad contract name length %d", len(t.name))
	}
	buf.WriteByte(byte(len(t.name)))
	buf.WriteString(t.name)
	if len(t.function) == 0 || len(t.function) > maxClarityNameLen {
		return nil, types.Wrapf(types.ErrTxBuildFailed, "bad function name length %d", len(t.function))
	}
	buf.WriteByte(byte(len(t.function)))
	buf.WriteString(t.function)
	binary.BigEndian.PutUint32(u4[:], uint32(len(t.args)))
	buf.Write(u4[:])
	for _, arg := range t.args {
		raw, err := arg.Encode()
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

func (t *contractCallTx) sign(priv *secp256k1.PrivateKey) error {
	cleared, err := t.serialize(true)
	if err != nil {
		return err
	}
	sighash := sha512.Sum512_256(cleared)

	// presign sighash commits to the auth flag, fee and nonce
	var pre bytes.Buffer
	pre.Write(sighash[:])
	pre.WriteByte(authTypeStandard)
	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], t.fee)
	pre.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], t.nonce)
	pre.Write(u8[:])
	presign := sha512.Sum512_256(pre.Bytes())

	compact := ecdsa.SignCompact(priv, presign[:], true)
	// compact form is [27+recid(+4), r, s]; the wire wants [recid, r, s]
	t.sig[0] = (compact[0] - 27) & 0x03
	copy(t.sig[1:], compact[1:])
	return nil
}

// BuildContractCall produces a signed raw transaction and its txid.
func BuildContractCall(
	senderKey string,
	network string,
	nonce uint64,
	fee uint64,
	contract ContractVersion,
	function string,
	args ...*ClarityValue,
) ([]byte, string, error) {
	net, ok := txNetworks[network]
	if !ok {
		return nil, "", types.Wrapf(types.ErrTxBuildFailed, "unknown network %q", network)
	}
	priv, err := parseSenderKey(senderKey)
	if err != nil {
		return nil, "", err
	}
	addr, err := DecodeC32Address(contract.Address)
	if err != nil {
		return nil, "", err
	}
	tx := &contractCallTx{
		network:  net,
		signer:   hash160(priv.PubKey().SerializeCompressed()),
		nonce:    nonce,
		fee:      fee,
		contract: addr,
		name:     contract.Name,
		function: function,
		args:     args,
	}
	if err := tx.sign(priv); err != nil {
		return nil, "", err
	}
	raw, err := tx.serialize(false)
	if err != nil {
		return nil, "", err
	}
	txid := sha512.Sum512_256(raw)
	return raw, hex.EncodeToString(txid[:]), nil
}
