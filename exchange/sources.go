package exchange

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultSources returns the production BTC/USD feed set: Coinbase spot,
// Kraken ticker and Binance ticker.
func DefaultSources() []Source {
	return []Source{
		{
			Name:  "coinbase",
			URL:   "https://api.coinbase.com/v2/prices/BTC-USD/spot",
			Parse: parseCoinbase,
		},
		{
			Name:  "kraken",
			URL:   "https://api.kraken.com/0/public/Ticker?pair=XBTUSD",
			Parse: parseKraken,
		},
		{
			Name:  "binance",
			URL:   "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT",
			Parse: parseBinance,
		},
	}
}

func parseCoinbase(body []byte) (float64, error) {
	var response struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	err := json.Unmarshal(body, &response)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(response.Data.Amount, 64)
}

func parseKraken(body []byte) (float64, error) {
	var response struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Close []string `json:"c"`
		} `json:"result"`
	}
	err := json.Unmarshal(body, &response)
	if err != nil {
		return 0, err
	}
	if len(response.Error) > 0 {
		return 0, errors.Errorf("kraken error: %s", response.Error[0])
	}
	// The result is keyed by Kraken's internal pair name.
	for _, ticker := range response.Result {
		if len(ticker.Close) == 0 {
			break
		}
		return strconv.ParseFloat(ticker.Close[0], 64)
	}
	return 0, errors.New("kraken response contains no ticker")
}

func parseBinance(body []byte) (float64, error) {
	var response struct {
		Price string `json:"price"`
	}
	err := json.Unmarshal(body, &response)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(response.Price, 64)
}
