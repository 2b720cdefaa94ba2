package explorer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
)

// requestTimeout bounds each explorer request.
const requestTimeout = 8 * time.Second

const maxResponseBytes = 4 << 20

// esploraAPI is a client for one esplora-compatible explorer endpoint.
type esploraAPI struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func newEsploraAPI(name, baseURL string) *esploraAPI {
	return &esploraAPI{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// addressStats is the esplora address summary.
type addressStats struct {
	ChainStats   txoStats `json:"chain_stats"`
	MempoolStats txoStats `json:"mempool_stats"`
}

type txoStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	TxCount      int64 `json:"tx_count"`
}

func (s *addressStats) totalReceived() btcutil.Amount {
	return btcutil.Amount(s.ChainStats.FundedTxoSum + s.MempoolStats.FundedTxoSum)
}

// addressTx is one transaction as reported by the esplora txs endpoint,
// newest first.
type addressTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint64 `json:"block_height"`
	} `json:"status"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
}

// creditedAmount sums the outputs of the transaction that pay the address.
func (tx *addressTx) creditedAmount(address string) btcutil.Amount {
	var sum int64
	for _, vout := range tx.Vout {
		if vout.ScriptPubKeyAddress == address {
			sum += vout.Value
		}
	}
	return btcutil.Amount(sum)
}

// errStatusNotFound marks a 404 from the explorer, which esplora uses for
// addresses it has never seen.
var errStatusNotFound = errors.New("not found")

// probe implements the normalization for one endpoint. A nil error means the
// result is usable; an error means this endpoint should be skipped in favor
// of the next one.
func (api *esploraAPI) probe(address string) (*ProbeResult, error) {
	stats, err := api.fetchAddressStats(address)
	if err != nil {
		if errors.Cause(err) == errStatusNotFound {
			return &ProbeResult{State: StateNoPayment}, nil
		}
		return nil, err
	}
	received := stats.totalReceived()
	if received == 0 {
		return &ProbeResult{State: StateNoPayment}, nil
	}

	// The address endpoint reports funds but the detail endpoints may still
	// fail. In that case report a zero-confirmation pending payment; the
	// next probe fills in the rest.
	txs, err := api.fetchAddressTxs(address)
	if err != nil {
		log.Debugf("Explorer %s: address %s is funded but the tx listing "+
			"failed: %s", api.name, address, err)
		return &ProbeResult{State: StatePending, Amount: received}, nil
	}

	inbound := make([]*addressTx, 0, len(txs))
	for i := range txs {
		if txs[i].creditedAmount(address) > 0 {
			inbound = append(inbound, &txs[i])
		}
	}
	if len(inbound) == 0 {
		return &ProbeResult{State: StateNoPayment}, nil
	}
	// Receive addresses are single-use, so multiple inbound transactions
	// are anomalous. Use the most recent and log the rest.
	if len(inbound) > 1 {
		extra := make([]string, 0, len(inbound)-1)
		for _, tx := range inbound[1:] {
			extra = append(extra, tx.TxID)
		}
		log.Warnf("Address %s is credited by %d transactions, using %s "+
			"and ignoring [%s]", address, len(inbound), inbound[0].TxID,
			strings.Join(extra, ", "))
	}
	tx := inbound[0]
	amount := tx.creditedAmount(address)

	if !tx.Status.Confirmed {
		return &ProbeResult{
			State:  StatePending,
			TxID:   tx.TxID,
			Amount: amount,
		}, nil
	}

	tipHeight, err := api.fetchTipHeight()
	if err != nil {
		log.Debugf("Explorer %s: couldn't fetch the tip height: %s",
			api.name, err)
		return &ProbeResult{
			State:  StatePending,
			TxID:   tx.TxID,
			Amount: amount,
		}, nil
	}

	confirmations := uint64(1)
	if tipHeight > tx.Status.BlockHeight {
		confirmations = tipHeight - tx.Status.BlockHeight + 1
	}
	return &ProbeResult{
		State:         StateConfirmed,
		TxID:          tx.TxID,
		Amount:        amount,
		Confirmations: confirmations,
	}, nil
}

func (api *esploraAPI) fetchAddressStats(address string) (*addressStats, error) {
	body, err := api.get(fmt.Sprintf("/address/%s", address))
	if err != nil {
		return nil, err
	}
	stats := &addressStats{}
	err = json.Unmarshal(body, stats)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't parse the address stats")
	}
	return stats, nil
}

func (api *esploraAPI) fetchAddressTxs(address string) ([]addressTx, error) {
	body, err := api.get(fmt.Sprintf("/address/%s/txs", address))
	if err != nil {
		return nil, err
	}
	var txs []addressTx
	err = json.Unmarshal(body, &txs)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't parse the tx listing")
	}
	return txs, nil
}

func (api *esploraAPI) fetchTipHeight() (uint64, error) {
	body, err := api.get("/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "couldn't parse the tip height")
	}
	return height, nil
}

func (api *esploraAPI) get(path string) ([]byte, error) {
	response, err := api.httpClient.Get(api.baseURL + path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't reach %s", api.name)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return nil, errStatusNotFound
	}
	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s returned status %d for %s", api.name,
			response.StatusCode, path)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read %s response", api.name)
	}
	return body, nil
}
