package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/JasonDocton/rad-crowdfunding/httpserverutils"
	"github.com/JasonDocton/rad-crowdfunding/payments"
)

const maxRequestBodyBytes = 4096

// GenerateAddressRequest is the wire shape of a new payment attempt.
type GenerateAddressRequest struct {
	AmountUSD     float64 `json:"amountUsd"`
	PlayerName    string  `json:"playerName"`
	UsePlayerName bool    `json:"usePlayerName"`
	Message       string  `json:"message"`
}

// GenerateAddressResponse is what the payment screen renders.
type GenerateAddressResponse struct {
	Address         string  `json:"address"`
	AmountBTC       float64 `json:"amountBtc"`
	AmountUSD       float64 `json:"amountUsd"`
	ExchangeRate    float64 `json:"exchangeRate"`
	DerivationIndex uint32  `json:"derivationIndex"`
	PaymentURI      string  `json:"paymentUri"`
}

// GenerateAddressHandler derives a receive address for the session.
func GenerateAddressHandler(ctx *Context, sessionID string,
	requestBody io.Reader) (interface{}, *httpserverutils.HandlerError) {

	request := &GenerateAddressRequest{}
	err := json.NewDecoder(io.LimitReader(requestBody, maxRequestBodyBytes)).
		Decode(request)
	if err != nil {
		return nil, httpserverutils.NewHandlerError(http.StatusUnprocessableEntity,
			"The request body is not valid JSON.")
	}

	generated, err := ctx.Manager.GenerateAddress(sessionID, request.AmountUSD,
		&payments.Metadata{
			PlayerName:    request.PlayerName,
			UsePlayerName: request.UsePlayerName,
			Message:       request.Message,
		})
	if err != nil {
		return nil, handlerErrorFromPayments(err)
	}
	return &GenerateAddressResponse{
		Address:         generated.Address,
		AmountBTC:       generated.AmountBTC.ToBTC(),
		AmountUSD:       generated.AmountUSD,
		ExchangeRate:    generated.ExchangeRate,
		DerivationIndex: generated.DerivationIndex,
		PaymentURI:      generated.PaymentURI,
	}, nil
}

// CheckPaymentResponse is the wire shape of a payment status poll.
type CheckPaymentResponse struct {
	Paid                  bool    `json:"paid"`
	Confirmed             bool    `json:"confirmed"`
	TxID                  string  `json:"txId,omitempty"`
	AmountBTC             float64 `json:"amountBtc,omitempty"`
	Confirmations         uint64  `json:"confirmations"`
	RequiredConfirmations uint64  `json:"requiredConfirmations"`
	AmountUSD             float64 `json:"amountUsd,omitempty"`
}

// CheckPaymentHandler reports the payment state of an address owned by the
// session, settling it if it has confirmed.
func CheckPaymentHandler(ctx *Context, sessionID string,
	address string) (interface{}, *httpserverutils.HandlerError) {

	result, err := ctx.Manager.CheckPayment(sessionID, address)
	if err != nil {
		return nil, handlerErrorFromPayments(err)
	}
	return &CheckPaymentResponse{
		Paid:                  result.Paid,
		Confirmed:             result.Confirmed,
		TxID:                  result.TxID,
		AmountBTC:             result.AmountBTC.ToBTC(),
		Confirmations:         result.Confirmations,
		RequiredConfirmations: result.RequiredConfirmations,
		AmountUSD:             result.AmountUSD,
	}, nil
}

// MarkExpiredHandler abandons an initialized payment attempt owned by the
// session.
func MarkExpiredHandler(ctx *Context, sessionID string,
	address string) (interface{}, *httpserverutils.HandlerError) {

	err := ctx.Manager.MarkExpired(sessionID, address)
	if err != nil {
		return nil, handlerErrorFromPayments(err)
	}
	return struct {
		Expired bool `json:"expired"`
	}{Expired: true}, nil
}
