// Package bip84 derives native SegWit (P2WPKH) receive addresses from a
// BIP84 extended private key at the path m/84'/0'/0'/0/{index}.
//
// The package is pure: derivation performs no I/O and keeps no state, so the
// same (key, index, network) always produces the same address.
package bip84

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

var (
	// ErrInvalidKeyFormat describes an extended key that could not be
	// decoded, carries unknown version bytes, or does not match the
	// requested network.
	ErrInvalidKeyFormat = errors.New("invalid extended key format")

	// ErrInvalidKeyDepth describes an extended key whose depth cannot be
	// mapped onto the BIP84 account path.
	ErrInvalidKeyDepth = errors.New("invalid extended key depth")

	// ErrDerivationFailure describes a child derivation that yielded an
	// invalid scalar. This is vanishingly rare; retry with the next index.
	ErrDerivationFailure = errors.New("child derivation failed")
)

// BIP84 path levels below the account: external (receiving) chain.
const externalChain = 0

// Derive produces the bech32 P2WPKH receive address for the given extended
// private key and index on the given network. The key's version bytes must
// match the network: zprv for mainnet, vprv for testnet.
//
// The key may be provided at any level of the BIP84 path down to the account:
//   - depth 0 (master): the account is derived at m/84'/0'/0'
//   - depth 1: the key is treated as already at the account level (keys
//     exported by Electrum carry this shape)
//   - depth 2 (coin level): the account is derived at 0'
//   - depth 3 (account): used as-is
func Derive(encodedKey string, index uint32, params *chaincfg.Params) (string, error) {
	if index >= hardenedIndexStart {
		return "", errors.Wrapf(ErrDerivationFailure,
			"index %d is out of the non-hardened range", index)
	}

	key, err := decodeExtendedKey(encodedKey)
	if err != nil {
		return "", err
	}
	if key.version != privateVersionForNetwork(params) {
		return "", errors.Wrapf(ErrInvalidKeyFormat,
			"extended key does not belong to network %s", params.Name)
	}

	account, err := deriveAccount(key)
	if err != nil {
		return "", err
	}
	chain, err := account.child(externalChain)
	if err != nil {
		return "", err
	}
	child, err := chain.child(index)
	if err != nil {
		return "", err
	}

	return encodeP2WPKH(child.publicKey().SerializeCompressed(), params)
}

// deriveAccount walks the key down to the BIP84 account level m/84'/0'/0'
// based on its current depth.
func deriveAccount(key *extendedKey) (*extendedKey, error) {
	switch key.depth {
	case 0:
		return deriveHardenedPath(key, 84, 0, 0)
	case 1:
		// Already at account level (Electrum quirk).
		return key, nil
	case 2:
		return deriveHardenedPath(key, 0)
	case 3:
		return key, nil
	}
	return nil, errors.Wrapf(ErrInvalidKeyDepth,
		"cannot derive an account from a key at depth %d", key.depth)
}

func deriveHardenedPath(key *extendedKey, indices ...uint32) (*extendedKey, error) {
	current := key
	for _, index := range indices {
		child, err := current.child(hardenedIndexStart + index)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

func privateVersionForNetwork(params *chaincfg.Params) [4]byte {
	if params.Net == chaincfg.MainNetParams.Net {
		return BitcoinMainnetPrivate
	}
	return BitcoinTestnetPrivate
}

// encodeP2WPKH encodes HASH160 of the compressed public key as a version-0
// witness program in bech32.
func encodeP2WPKH(compressedPubKey []byte, params *chaincfg.Params) (string, error) {
	witnessProgram := hash160(compressedPubKey)
	converted, err := bech32.ConvertBits(witnessProgram, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "couldn't regroup the witness program")
	}
	address, err := bech32.Encode(params.Bech32HRPSegwit,
		append([]byte{0x00}, converted...))
	if err != nil {
		return "", errors.Wrap(err, "couldn't bech32-encode the address")
	}
	return address, nil
}

// hash160 computes RIPEMD160(SHA256(data)).
func hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return ripe.Sum(nil)
}
