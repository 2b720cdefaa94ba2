package payments

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Donation bounds in USD.
const (
	MinDonationUSD = 1.0
	MaxDonationUSD = 100000.0
)

const (
	maxPlayerNameLength = 50
	maxMessageLength    = 500

	minAddressLength = 42
	maxAddressLength = 90
)

// Metadata is the optional donor-provided decoration of a payment attempt.
// Empty strings mean the field was not provided.
type Metadata struct {
	PlayerName    string
	UsePlayerName bool
	Message       string
}

func validateAmount(amountUSD float64) error {
	if amountUSD < MinDonationUSD || amountUSD > MaxDonationUSD {
		return paymentError(ErrValidation, fmt.Sprintf(
			"donation amount must be between $%.0f and $%.0f",
			MinDonationUSD, MaxDonationUSD))
	}
	return nil
}

func validateMetadata(metadata *Metadata) error {
	if metadata == nil {
		return nil
	}
	if metadata.PlayerName != "" {
		if strings.TrimSpace(metadata.PlayerName) == "" {
			return paymentError(ErrValidation, "player name must not be blank")
		}
		if len(metadata.PlayerName) > maxPlayerNameLength {
			return paymentError(ErrValidation, fmt.Sprintf(
				"player name must be at most %d characters", maxPlayerNameLength))
		}
	}
	if metadata.Message != "" {
		if strings.TrimSpace(metadata.Message) == "" {
			return paymentError(ErrValidation, "message must not be blank")
		}
		if len(metadata.Message) > maxMessageLength {
			return paymentError(ErrValidation, fmt.Sprintf(
				"message must be at most %d characters", maxMessageLength))
		}
	}
	return nil
}

// validateAddress performs a bech32 shape check: network prefix, length and
// charset. Full checksum verification is left to the explorers; every
// address the store knows was derived by us and is valid by construction.
func validateAddress(address string, params *chaincfg.Params) error {
	prefix := params.Bech32HRPSegwit + "1"
	if !strings.HasPrefix(address, prefix) {
		return paymentError(ErrValidation, fmt.Sprintf(
			"address does not belong to the %s network", params.Name))
	}
	if len(address) < minAddressLength || len(address) > maxAddressLength {
		return paymentError(ErrValidation, "address length is invalid")
	}
	for _, r := range address[len(prefix):] {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return paymentError(ErrValidation, "address contains invalid characters")
		}
		// bech32 excludes characters that are easily confused.
		if r == '1' || r == 'b' || r == 'i' || r == 'o' {
			return paymentError(ErrValidation, "address contains invalid characters")
		}
	}
	return nil
}

// clampDonationBounds clamps a computed USD amount into the donation bounds.
// Exceeding them is only possible through exchange rate movement or
// overpayment on an already-validated attempt, so the amount is clamped
// rather than rejected.
func clampDonationBounds(amountUSD float64, address string) float64 {
	if amountUSD < MinDonationUSD {
		log.Warnf("Computed donation amount $%.2f for %s is below the "+
			"minimum, clamping", amountUSD, address)
		return MinDonationUSD
	}
	if amountUSD > MaxDonationUSD {
		log.Warnf("Computed donation amount $%.2f for %s is above the "+
			"maximum, clamping", amountUSD, address)
		return MaxDonationUSD
	}
	return amountUSD
}
