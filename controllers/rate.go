package controllers

import (
	"net/http"
	"time"

	"github.com/JasonDocton/rad-crowdfunding/httpserverutils"
	"github.com/JasonDocton/rad-crowdfunding/ratelimit"
)

// rateWindow throttles the public exchange rate endpoint as a whole; the
// oracle's own cache makes a tighter limit pointless.
var rateWindow = ratelimit.NewFixedWindow(30 * time.Second)

const rateWindowKey = "exchange-rate"

// ExchangeRateResponse is the wire shape of the public rate quote.
type ExchangeRateResponse struct {
	Rate float64 `json:"rate"`
}

// GetExchangeRateHandler returns the current BTC/USD rate.
func GetExchangeRateHandler(ctx *Context) (interface{}, *httpserverutils.HandlerError) {
	if !rateWindow.Allow(rateWindowKey) {
		return nil, httpserverutils.NewHandlerError(http.StatusTooManyRequests,
			"The exchange rate can be requested once every 30 seconds.")
	}

	rate, err := ctx.Oracle.Price()
	if err != nil {
		return nil, httpserverutils.NewHandlerError(http.StatusServiceUnavailable,
			"No exchange rate is currently available.")
	}
	return &ExchangeRateResponse{Rate: rate}, nil
}
