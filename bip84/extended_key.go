package bip84

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

const (
	// extendedKeyPayloadLength is the length of a serialized extended key
	// after the base58check checksum has been stripped.
	extendedKeyPayloadLength = 78

	// hardenedIndexStart is the index offset at which hardened child
	// derivation begins.
	hardenedIndexStart = 0x80000000

	checksumLength = 4
)

// extendedKey is a parsed BIP32 extended private key.
type extendedKey struct {
	version     [4]byte
	depth       byte
	parentFP    [4]byte
	childNumber uint32
	chainCode   [32]byte
	privKey     [32]byte
}

// decodeExtendedKey base58check-decodes and parses a serialized extended
// private key. The wrapped payload is 4 bytes of version, 1 byte of depth,
// 4 bytes of parent fingerprint, 4 bytes of child number, 32 bytes of chain
// code and 33 bytes of key data (0x00 prefix + 32-byte private key).
func decodeExtendedKey(encoded string) (*extendedKey, error) {
	decoded := base58.Decode(encoded)
	if len(decoded) != extendedKeyPayloadLength+checksumLength {
		return nil, errors.Wrapf(ErrInvalidKeyFormat,
			"decoded key length is %d, expected %d",
			len(decoded), extendedKeyPayloadLength+checksumLength)
	}

	payload := decoded[:extendedKeyPayloadLength]
	checksum := decoded[extendedKeyPayloadLength:]
	expectedChecksum := chainhash.DoubleHashB(payload)[:checksumLength]
	for i, b := range checksum {
		if b != expectedChecksum[i] {
			return nil, errors.Wrap(ErrInvalidKeyFormat, "bad checksum")
		}
	}

	key := &extendedKey{}
	copy(key.version[:], payload[:4])
	key.depth = payload[4]
	copy(key.parentFP[:], payload[5:9])
	key.childNumber = binary.BigEndian.Uint32(payload[9:13])
	copy(key.chainCode[:], payload[13:45])

	keyData := payload[45:78]
	if keyData[0] != 0x00 {
		return nil, errors.Wrap(ErrInvalidKeyFormat,
			"key data is not a private key")
	}
	copy(key.privKey[:], keyData[1:])

	if !isKnownPrivateVersion(key.version) {
		return nil, errors.Wrapf(ErrInvalidKeyFormat,
			"unknown extended key version %x", key.version)
	}
	return key, nil
}

// child derives the child extended key at index i per BIP32. Indices at or
// above hardenedIndexStart use hardened derivation.
func (k *extendedKey) child(i uint32) (*extendedKey, error) {
	data := make([]byte, 0, 37)
	if i >= hardenedIndexStart {
		data = append(data, 0x00)
		data = append(data, k.privKey[:]...)
	} else {
		data = append(data, k.publicKey().SerializeCompressed()...)
	}
	var indexBytes [4]byte
	binary.BigEndian.PutUint32(indexBytes[:], i)
	data = append(data, indexBytes[:]...)

	hmac512 := hmac.New(sha512.New, k.chainCode[:])
	hmac512.Write(data)
	ilr := hmac512.Sum(nil)

	// The derived scalar must be a valid private key: in [1, N) after the
	// parent key is added. Failing either check is vanishingly rare; the
	// caller retries with the next index.
	curveOrder := btcec.S256().Params().N
	il := new(big.Int).SetBytes(ilr[:32])
	if il.Cmp(curveOrder) >= 0 {
		return nil, errors.Wrapf(ErrDerivationFailure,
			"derived scalar at index %d is not below the curve order", i)
	}
	childScalar := new(big.Int).SetBytes(k.privKey[:])
	childScalar.Add(childScalar, il)
	childScalar.Mod(childScalar, curveOrder)
	if childScalar.Sign() == 0 {
		return nil, errors.Wrapf(ErrDerivationFailure,
			"derived key at index %d is zero", i)
	}

	child := &extendedKey{
		version:     k.version,
		depth:       k.depth + 1,
		childNumber: i,
	}
	fingerprint := hash160(k.publicKey().SerializeCompressed())
	copy(child.parentFP[:], fingerprint[:4])
	copy(child.chainCode[:], ilr[32:])
	childScalar.FillBytes(child.privKey[:])
	return child, nil
}

// publicKey returns the secp256k1 public key of this extended key.
func (k *extendedKey) publicKey() *btcec.PublicKey {
	_, pubKey := btcec.PrivKeyFromBytes(k.privKey[:])
	return pubKey
}
