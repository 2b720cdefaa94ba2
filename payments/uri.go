package payments

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// PaymentURI builds the BIP21 payment URI encoded into the QR code shown to
// the donor.
func PaymentURI(address string, amount btcutil.Amount, label, message string) string {
	var builder strings.Builder
	builder.WriteString("bitcoin:")
	builder.WriteString(address)
	builder.WriteString("?amount=")
	builder.WriteString(strconv.FormatFloat(amount.ToBTC(), 'f', -1, 64))
	if label != "" {
		builder.WriteString("&label=")
		builder.WriteString(uriEscape(label))
	}
	if message != "" {
		builder.WriteString("&message=")
		builder.WriteString(uriEscape(message))
	}
	return builder.String()
}

// uriEscape percent-encodes a BIP21 query value. BIP21 wants %20 for spaces,
// not the + that query escaping produces.
func uriEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
