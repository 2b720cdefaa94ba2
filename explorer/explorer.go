// Package explorer queries public blockchain explorers for inbound payments
// to a receive address and normalizes what they report into a single probe
// result.
//
// The primary explorer is mempool.space; on mainnet blockstream.info serves
// as a fallback. Both speak the esplora REST API.
package explorer

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ProbeState discriminates the possible outcomes of probing an address.
type ProbeState int

const (
	// StateAPIFailed means every explorer was unreachable or returned a
	// malformed response. The caller should retry later.
	StateAPIFailed ProbeState = iota

	// StateNoPayment means an explorer responded and no transaction credits
	// the address.
	StateNoPayment

	// StatePending means a transaction crediting the address was seen in
	// the mempool only.
	StatePending

	// StateConfirmed means a transaction crediting the address is included
	// in a block.
	StateConfirmed
)

func (s ProbeState) String() string {
	switch s {
	case StateAPIFailed:
		return "api_failed"
	case StateNoPayment:
		return "no_payment"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// ProbeResult is the normalized payment state of an address. TxID, Amount
// and Confirmations are only meaningful for StatePending and StateConfirmed.
// Amount is the sum of output values credited to the probed address in the
// reported transaction, not the transaction's total value.
type ProbeResult struct {
	State         ProbeState
	TxID          string
	Amount        btcutil.Amount
	Confirmations uint64
}

// Client probes explorers in a fixed fallback order.
type Client struct {
	endpoints []*esploraAPI
}

// Esplora API base URLs. Testnet payments live on testnet4, which
// blockstream.info does not serve, so testnet has no fallback.
const (
	mempoolSpaceMainnetURL = "https://mempool.space/api"
	mempoolSpaceTestnetURL = "https://mempool.space/testnet4/api"
	blockstreamMainnetURL  = "https://blockstream.info/api"
)

// NewClient returns a probe client for the given network.
func NewClient(params *chaincfg.Params) *Client {
	if params.Net == chaincfg.MainNetParams.Net {
		return newClientWithEndpoints(
			newEsploraAPI("mempool.space", mempoolSpaceMainnetURL),
			newEsploraAPI("blockstream.info", blockstreamMainnetURL),
		)
	}
	return newClientWithEndpoints(
		newEsploraAPI("mempool.space", mempoolSpaceTestnetURL),
	)
}

func newClientWithEndpoints(endpoints ...*esploraAPI) *Client {
	return &Client{endpoints: endpoints}
}

// Probe returns the payment state of the given address. Explorers are tried
// in order and the first one that yields a usable response wins; StateAPIFailed
// is returned only when every explorer failed.
func (c *Client) Probe(address string) *ProbeResult {
	for _, endpoint := range c.endpoints {
		result, err := endpoint.probe(address)
		if err != nil {
			log.Warnf("Explorer %s failed for address %s: %s",
				endpoint.name, address, err)
			continue
		}
		return result
	}
	return &ProbeResult{State: StateAPIFailed}
}
