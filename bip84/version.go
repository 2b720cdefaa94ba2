package bip84

// BitcoinMainnetPrivate is the version that is used for BIP84 mainnet
// extended private keys (zprv).
var BitcoinMainnetPrivate = [4]byte{
	0x04,
	0xb2,
	0x43,
	0x0c,
}

// BitcoinTestnetPrivate is the version that is used for BIP84 testnet
// extended private keys (vprv).
var BitcoinTestnetPrivate = [4]byte{
	0x04,
	0x5f,
	0x18,
	0xbc,
}

func isKnownPrivateVersion(version [4]byte) bool {
	switch version {
	case BitcoinMainnetPrivate:
		return true
	case BitcoinTestnetPrivate:
		return true
	}
	return false
}
