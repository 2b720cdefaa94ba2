package payments

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/dbaccess"
	"github.com/JasonDocton/rad-crowdfunding/explorer"
	"github.com/JasonDocton/rad-crowdfunding/models"
)

// CheckResult is the client-facing payment state of an address.
type CheckResult struct {
	// Paid reports whether any transaction crediting the address was seen,
	// confirmed or not.
	Paid bool

	// Confirmed reports whether the payment reached the required
	// confirmation depth and was settled into a donation.
	Confirmed bool

	TxID                  string
	AmountBTC             btcutil.Amount
	Confirmations         uint64
	RequiredConfirmations uint64

	// AmountUSD is the donation value in USD. Only set once Confirmed.
	AmountUSD float64

	// DonationCreated reports whether this call inserted the donation
	// ledger row. False when the background monitor got there first.
	DonationCreated bool
}

// CheckPayment reports the payment state of an address on behalf of the donor
// polling the payment screen. When the payment has reached the required
// confirmation depth it also settles it: the donation ledger row is created
// and the pending payment transitions to confirmed.
//
// The donation is valued at the current exchange rate rather than the one
// locked at generation time. This is deliberate: the result is the donor's
// receipt, and it should reflect what their coins are worth now.
func (m *Manager) CheckPayment(sessionID string, address string) (*CheckResult, error) {
	err := validateAddress(address, m.cfg.NetParams)
	if err != nil {
		return nil, err
	}

	payment, err := dbaccess.PaymentOwnedBySession(m.db, sessionID, address)
	if err != nil {
		cause := errors.Cause(err)
		if cause == dbaccess.ErrNotOwned {
			return nil, paymentError(ErrNotOwned,
				"this session does not own the given address")
		}
		if cause == dbaccess.ErrExpired {
			return nil, paymentError(ErrExpired,
				"the payment window for this address has closed")
		}
		return nil, err
	}

	if !m.checkLimit.Allow(sessionID) {
		return nil, paymentError(ErrRateLimited,
			"payment status can be checked once every 10 seconds")
	}

	required := m.cfg.RequiredConfirmations()
	if payment.Status == models.StatusConfirmed {
		return m.confirmedResult(payment, required), nil
	}

	result := m.probe.Probe(address)
	switch result.State {
	case explorer.StateAPIFailed, explorer.StateNoPayment:
		return &CheckResult{RequiredConfirmations: required}, nil

	case explorer.StatePending:
		return pendingResult(result, required), nil

	case explorer.StateConfirmed:
		if result.Confirmations < required {
			return pendingResult(result, required), nil
		}
	}

	rate, err := m.oracle.Price()
	if err != nil {
		log.Warnf("Couldn't price the confirmed payment to %s, falling back "+
			"to the stored rate: %s", address, err)
		rate = payment.ExchangeRate
	}
	amountUSD, created, err := m.settle(payment, result, rate)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		Paid:                  true,
		Confirmed:             true,
		TxID:                  result.TxID,
		AmountBTC:             result.Amount,
		Confirmations:         result.Confirmations,
		RequiredConfirmations: required,
		AmountUSD:             amountUSD,
		DonationCreated:       created,
	}, nil
}

// confirmedResult rebuilds a CheckResult for an already-settled payment
// without probing the explorers again.
func (m *Manager) confirmedResult(payment *models.PendingPayment,
	required uint64) *CheckResult {

	result := &CheckResult{
		Paid:                  true,
		Confirmed:             true,
		AmountBTC:             btcutil.Amount(payment.ExpectedAmountSats),
		Confirmations:         required,
		RequiredConfirmations: required,
	}
	if payment.TxID != nil {
		result.TxID = *payment.TxID
	}
	donation, err := dbaccess.DonationByPaymentID(m.db, payment.Address)
	if err == nil {
		result.AmountUSD = donation.AmountUSD
	}
	return result
}

func pendingResult(result *explorer.ProbeResult, required uint64) *CheckResult {
	return &CheckResult{
		Paid:                  true,
		TxID:                  result.TxID,
		AmountBTC:             result.Amount,
		Confirmations:         result.Confirmations,
		RequiredConfirmations: required,
	}
}

// settle turns a sufficiently confirmed probe result into a donation at the
// given exchange rate and transitions the pending payment to its terminal
// state. It is shared between CheckPayment and the background monitor and is
// safe to run from both concurrently: the donation insert is idempotent on
// the address and the status writes are terminal.
func (m *Manager) settle(payment *models.PendingPayment,
	result *explorer.ProbeResult, rate float64) (float64, bool, error) {

	expected := btcutil.Amount(payment.ExpectedAmountSats)
	if result.Amount < expected-amountTolerance {
		log.Infof("Address %s was underpaid: expected %s, received %s",
			payment.Address, expected, result.Amount)
		err := dbaccess.SetPaymentStatus(m.db, payment.Address, models.StatusExpired)
		if err != nil {
			return 0, false, err
		}
		return 0, false, paymentError(ErrUnderpayment,
			"the received amount is below the expected amount")
	}
	if result.Amount > expected+amountTolerance {
		log.Warnf("Address %s was overpaid: expected %s, received %s; "+
			"accepting the full amount", payment.Address, expected, result.Amount)
	}

	amountUSD := clampDonationBounds(result.Amount.ToBTC()*rate, payment.Address)

	err := dbaccess.AttachTransaction(m.db, payment.Address, result.TxID)
	if err != nil {
		return 0, false, err
	}
	created, err := dbaccess.CreateDonation(m.db, payment.Address, amountUSD,
		payment.DisplayName(), payment.Message)
	if err != nil {
		return 0, false, err
	}
	err = dbaccess.SetPaymentStatus(m.db, payment.Address, models.StatusConfirmed)
	if err != nil {
		return 0, false, err
	}

	if created {
		log.Infof("Settled payment to %s: donation of $%.2f recorded from "+
			"transaction %s", payment.Address, amountUSD, result.TxID)
	}
	return amountUSD, created, nil
}
