// Package payments is the orchestration layer of the Bitcoin donation flow.
// It ties the address deriver, the exchange rate oracle, the blockchain
// explorers and the pending payment store together behind four entry points:
// GenerateAddress, CheckPayment, MarkExpired and CleanupExpired, plus the
// background monitor that settles payments the client never polls for.
package payments

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/bip84"
	"github.com/JasonDocton/rad-crowdfunding/config"
	"github.com/JasonDocton/rad-crowdfunding/dbaccess"
	"github.com/JasonDocton/rad-crowdfunding/explorer"
	"github.com/JasonDocton/rad-crowdfunding/models"
	"github.com/JasonDocton/rad-crowdfunding/ratelimit"
	"github.com/JasonDocton/rad-crowdfunding/scheduler"
)

const (
	// generateInterval and generateBurst shape the address generation
	// limiter: one address per session every five minutes.
	generateInterval = 300 * time.Second
	generateBurst    = 1

	// checkWindow is the fixed window for payment status polling.
	checkWindow = 10 * time.Second

	// monitorInterval is the delay between background probes of an address.
	monitorInterval = 10 * time.Second

	// amountTolerance is the slack allowed between the expected and the
	// received amount before a payment counts as under- or overpaid.
	// 1000 satoshi is 1e-5 BTC.
	amountTolerance = btcutil.Amount(1000)

	// deriveAttempts bounds the retries when child derivation yields an
	// invalid scalar. Each retry burns a derivation index.
	deriveAttempts = 3

	// donationLabel is the BIP21 label shown by the donor's wallet.
	donationLabel = "Rise Above The Disorder"
)

// RateSource quotes the USD price of one Bitcoin. *exchange.Oracle is the
// production implementation.
type RateSource interface {
	Price() (float64, error)
}

// Probe reports the payment state of an address. *explorer.Client is the
// production implementation.
type Probe interface {
	Probe(address string) *explorer.ProbeResult
}

// Manager coordinates the payment flow. All methods are safe for concurrent
// use.
type Manager struct {
	cfg    *config.Config
	db     *gorm.DB
	oracle RateSource
	probe  Probe
	sched  *scheduler.Scheduler

	generateLimit *ratelimit.TokenBucket
	checkLimit    *ratelimit.FixedWindow
}

// NewManager returns a payment manager over the given collaborators.
func NewManager(cfg *config.Config, db *gorm.DB, oracle RateSource,
	probe Probe, sched *scheduler.Scheduler) *Manager {

	return &Manager{
		cfg:           cfg,
		db:            db,
		oracle:        oracle,
		probe:         probe,
		sched:         sched,
		generateLimit: ratelimit.NewTokenBucket(generateInterval, generateBurst),
		checkLimit:    ratelimit.NewFixedWindow(checkWindow),
	}
}

// GeneratedAddress is the result of GenerateAddress: everything the frontend
// needs to render the payment screen.
type GeneratedAddress struct {
	Address         string
	AmountBTC       btcutil.Amount
	AmountUSD       float64
	ExchangeRate    float64
	DerivationIndex uint32
	PaymentURI      string
}

// GenerateAddress derives a fresh receive address for the given donation
// amount and stores the pending payment attempt.
//
// Calling it again with the same (session, amount) while the attempt is alive
// returns the existing address with a freshly quoted BTC amount, so a donor
// who refreshes the page keeps their QR code accurate without burning a
// derivation index or a rate limit token.
func (m *Manager) GenerateAddress(sessionID string, amountUSD float64,
	metadata *Metadata) (*GeneratedAddress, error) {

	err := validateAmount(amountUSD)
	if err != nil {
		return nil, err
	}
	err = validateMetadata(metadata)
	if err != nil {
		return nil, err
	}

	existing, err := dbaccess.ActivePaymentBySessionAndAmount(m.db, sessionID, amountUSD)
	if err == nil {
		return m.requote(existing)
	}
	if !dbaccess.IsNotFoundError(err) {
		return nil, err
	}

	if !m.generateLimit.Allow(sessionID) {
		return nil, paymentError(ErrRateLimited,
			"too many address requests, try again in a few minutes")
	}

	price, err := m.oracle.Price()
	if err != nil {
		return nil, paymentError(ErrOracleUnavailable,
			"no exchange rate is currently available")
	}
	amount, err := usdToAmount(amountUSD, price)
	if err != nil {
		return nil, err
	}

	address, index, err := m.deriveNextAddress()
	if err != nil {
		return nil, err
	}

	payment := &models.PendingPayment{
		SessionID:          sessionID,
		Address:            address,
		ExpectedAmountSats: int64(amount),
		ExpectedAmountUSD:  amountUSD,
		ExchangeRate:       price,
		DerivationIndex:    index,
	}
	if metadata != nil {
		if metadata.PlayerName != "" {
			payment.PlayerName = &metadata.PlayerName
			payment.UsePlayerName = metadata.UsePlayerName
		}
		if metadata.Message != "" {
			payment.Message = &metadata.Message
		}
	}
	err = dbaccess.CreatePendingPayment(m.db, payment)
	if err != nil {
		return nil, err
	}

	m.scheduleMonitorCheck(address, monitorInterval)

	log.Infof("Generated address %s at index %d for a $%.2f donation "+
		"(%s at rate %.2f)", address, index, amountUSD, amount, price)
	return &GeneratedAddress{
		Address:         address,
		AmountBTC:       amount,
		AmountUSD:       amountUSD,
		ExchangeRate:    price,
		DerivationIndex: index,
		PaymentURI:      PaymentURI(address, amount, donationLabel, ""),
	}, nil
}

// requote rebuilds the GenerateAddress result for an existing attempt with a
// current price quote. When no source is reachable the rate locked at
// generation time is used instead.
func (m *Manager) requote(payment *models.PendingPayment) (*GeneratedAddress, error) {
	rate, err := m.oracle.Price()
	if err != nil {
		log.Warnf("Couldn't refresh the quote for %s, falling back to the "+
			"stored rate: %s", payment.Address, err)
		rate = payment.ExchangeRate
	}
	amount, err := usdToAmount(payment.ExpectedAmountUSD, rate)
	if err != nil {
		return nil, err
	}
	return &GeneratedAddress{
		Address:         payment.Address,
		AmountBTC:       amount,
		AmountUSD:       payment.ExpectedAmountUSD,
		ExchangeRate:    rate,
		DerivationIndex: payment.DerivationIndex,
		PaymentURI:      PaymentURI(payment.Address, amount, donationLabel, ""),
	}, nil
}

// deriveNextAddress burns derivation indexes until one yields a valid child
// key. In practice the first attempt succeeds; the retry loop exists because
// BIP32 child derivation can fail for roughly one index in 2^127.
func (m *Manager) deriveNextAddress() (string, uint32, error) {
	for attempt := 0; attempt < deriveAttempts; attempt++ {
		index, err := dbaccess.NextDerivationIndex(m.db)
		if err != nil {
			return "", 0, err
		}
		address, err := bip84.Derive(m.cfg.MasterKey(), index, m.cfg.NetParams)
		if err != nil {
			if errors.Is(err, bip84.ErrDerivationFailure) {
				log.Warnf("Derivation failed at index %d, retrying with the "+
					"next index: %s", index, err)
				continue
			}
			return "", 0, err
		}
		return address, index, nil
	}
	return "", 0, errors.Wrapf(bip84.ErrDerivationFailure,
		"%d consecutive derivation attempts failed", deriveAttempts)
}

// MarkExpired abandons an initialized payment attempt owned by the session,
// e.g. when the donor closes the payment dialog. Attempts in any other state
// are left alone, which makes the operation idempotent.
func (m *Manager) MarkExpired(sessionID string, address string) error {
	err := validateAddress(address, m.cfg.NetParams)
	if err != nil {
		return err
	}
	_, err = dbaccess.PaymentOwnedBySession(m.db, sessionID, address)
	if err != nil {
		cause := errors.Cause(err)
		if cause == dbaccess.ErrExpired {
			return nil
		}
		if cause == dbaccess.ErrNotOwned {
			return paymentError(ErrNotOwned,
				"this session does not own the given address")
		}
		return err
	}
	return dbaccess.MarkExpiredBySession(m.db, sessionID, address)
}

// usdToAmount converts a USD amount into satoshi at the given rate.
func usdToAmount(amountUSD float64, rate float64) (btcutil.Amount, error) {
	if rate <= 0 {
		return 0, errors.Errorf("exchange rate %f is not positive", rate)
	}
	amount, err := btcutil.NewAmount(amountUSD / rate)
	if err != nil {
		return 0, errors.Wrap(err, "couldn't convert the USD amount to BTC")
	}
	return amount, nil
}
