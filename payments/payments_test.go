package payments

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/JasonDocton/rad-crowdfunding/config"
	"github.com/JasonDocton/rad-crowdfunding/dbaccess"
	"github.com/JasonDocton/rad-crowdfunding/explorer"
	"github.com/JasonDocton/rad-crowdfunding/models"
	"github.com/JasonDocton/rad-crowdfunding/ratelimit"
	"github.com/JasonDocton/rad-crowdfunding/scheduler"
)

// Test key from the BIP84 reference seed (mnemonic "abandon abandon ... about").
const testMasterZprv = "zprvAWgYBBk7JR8Gjrh4UJQ2uJdG1r3WNRRfURiABBE3RvMXYSrRJL6" +
	"2XuezvGdPvG6GFBZduosCc1YP5wixPox7zhZLfiUm8aunE96BBa4Kei5"

// Address at m/84'/0'/0'/0/1 for testMasterZprv; used where a valid address
// unknown to the store is needed.
const unknownAddress = "bc1qnjg0jd8228aq7egyzacy8cys3knf9xvrerkf9g"

type stubOracle struct {
	price float64
	err   error
	calls int
}

func (o *stubOracle) Price() (float64, error) {
	o.calls++
	return o.price, o.err
}

type stubProbe struct {
	result *explorer.ProbeResult
	calls  int
}

func (p *stubProbe) Probe(address string) *explorer.ProbeResult {
	p.calls++
	if p.result == nil {
		return &explorer.ProbeResult{State: explorer.StateNoPayment}
	}
	return p.result
}

func newTestManager(t *testing.T, oracle RateSource, probe Probe) (*Manager, func()) {
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("couldn't open test database: %s", err)
	}
	// The in-memory database lives and dies with its connection.
	db.DB().SetMaxOpenConns(1)
	dbResult := db.AutoMigrate(&models.Donation{}, &models.PendingPayment{},
		&models.DerivationCounter{})
	if dbResult.Error != nil {
		t.Fatalf("couldn't migrate test database: %s", dbResult.Error)
	}

	cfg := &config.Config{
		Network:    config.NetworkMainnet,
		MasterZprv: testMasterZprv,
		NetParams:  &chaincfg.MainNetParams,
	}
	sched := scheduler.New()
	manager := NewManager(cfg, db, oracle, probe, sched)
	return manager, func() {
		sched.Stop()
		db.Close()
	}
}

func generateTestPayment(t *testing.T, m *Manager, sessionID string,
	amountUSD float64) *GeneratedAddress {

	generated, err := m.GenerateAddress(sessionID, amountUSD, nil)
	if err != nil {
		t.Fatalf("GenerateAddress: unexpected error: %+v", err)
	}
	return generated
}

func TestGenerateAddress(t *testing.T) {
	oracle := &stubOracle{price: 45000}
	m, teardown := newTestManager(t, oracle, &stubProbe{})
	defer teardown()

	generated := generateTestPayment(t, m, "s1", 100)
	if generated.DerivationIndex != 0 {
		t.Errorf("first derivation index is %d, want 0", generated.DerivationIndex)
	}
	if generated.Address[:3] != "bc1" {
		t.Errorf("address %s is not a mainnet bech32 address", generated.Address)
	}
	if generated.AmountBTC != 222222 {
		t.Errorf("amount is %d satoshi, want 222222", generated.AmountBTC)
	}
	if generated.ExchangeRate != 45000 {
		t.Errorf("exchange rate is %f, want 45000", generated.ExchangeRate)
	}
	wantURI := "bitcoin:" + generated.Address +
		"?amount=0.00222222&label=Rise%20Above%20The%20Disorder"
	if generated.PaymentURI != wantURI {
		t.Errorf("payment URI is %s, want %s", generated.PaymentURI, wantURI)
	}

	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusInitialized {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusInitialized)
	}
	if payment.ExpectedAmountSats != 222222 {
		t.Errorf("stored amount is %d satoshi, want 222222", payment.ExpectedAmountSats)
	}
	if payment.ExchangeRate != 45000 {
		t.Errorf("stored rate is %f, want 45000", payment.ExchangeRate)
	}
}

func TestGenerateAddressIsIdempotentPerSessionAndAmount(t *testing.T) {
	oracle := &stubOracle{price: 45000}
	m, teardown := newTestManager(t, oracle, &stubProbe{})
	defer teardown()

	first := generateTestPayment(t, m, "s2", 50)

	// The price moving must not change the address, only the quote.
	oracle.price = 50000
	second := generateTestPayment(t, m, "s2", 50)

	if second.Address != first.Address {
		t.Errorf("repeated call derived a new address %s, want %s",
			second.Address, first.Address)
	}
	if second.DerivationIndex != first.DerivationIndex {
		t.Errorf("repeated call returned index %d, want %d",
			second.DerivationIndex, first.DerivationIndex)
	}
	wantAmount, _ := btcutil.NewAmount(50.0 / 50000)
	if second.AmountBTC != wantAmount {
		t.Errorf("requoted amount is %d satoshi, want %d",
			second.AmountBTC, wantAmount)
	}

	counter := &models.DerivationCounter{}
	dbResult := m.db.First(counter)
	if dbResult.Error != nil {
		t.Fatalf("couldn't read the derivation counter: %s", dbResult.Error)
	}
	if counter.Value != 1 {
		t.Errorf("derivation counter is %d after two identical calls, want 1",
			counter.Value)
	}
}

func TestGenerateAddressRateLimit(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	generateTestPayment(t, m, "s3", 10)

	// A different amount is not idempotent, so it has to consume a token,
	// and the session's only token is gone.
	_, err := m.GenerateAddress("s3", 20, nil)
	if !IsErrorCode(err, ErrRateLimited) {
		t.Errorf("got error %v, want ErrRateLimited", err)
	}

	// Another session is unaffected.
	generateTestPayment(t, m, "s4", 20)
}

func TestGenerateAddressValidation(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	longName := make([]byte, maxPlayerNameLength+1)
	for i := range longName {
		longName[i] = 'a'
	}

	tests := []struct {
		name      string
		amountUSD float64
		metadata  *Metadata
		wantErr   bool
	}{
		{name: "minimum accepted", amountUSD: 1},
		{name: "below minimum", amountUSD: 0.99, wantErr: true},
		{name: "maximum accepted", amountUSD: 100000},
		{name: "above maximum", amountUSD: 100001, wantErr: true},
		{name: "zero", amountUSD: 0, wantErr: true},
		{
			name:      "player name too long",
			amountUSD: 10,
			metadata:  &Metadata{PlayerName: string(longName), UsePlayerName: true},
			wantErr:   true,
		},
		{
			name:      "blank message",
			amountUSD: 10,
			metadata:  &Metadata{Message: "   "},
			wantErr:   true,
		},
	}

	for i, test := range tests {
		sessionID := "validation-" + string(rune('a'+i))
		_, err := m.GenerateAddress(sessionID, test.amountUSD, test.metadata)
		if test.wantErr {
			if !IsErrorCode(err, ErrValidation) {
				t.Errorf("%s: got error %v, want ErrValidation", test.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %+v", test.name, err)
		}
	}
}

func TestGenerateAddressOracleUnavailable(t *testing.T) {
	oracle := &stubOracle{err: errors.New("all sources down")}
	m, teardown := newTestManager(t, oracle, &stubProbe{})
	defer teardown()

	_, err := m.GenerateAddress("s5", 100, nil)
	if !IsErrorCode(err, ErrOracleUnavailable) {
		t.Errorf("got error %v, want ErrOracleUnavailable", err)
	}
}

func TestCheckPaymentOwnership(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	generated := generateTestPayment(t, m, "s6", 100)

	_, err := m.CheckPayment("someone-else", generated.Address)
	if !IsErrorCode(err, ErrNotOwned) {
		t.Errorf("foreign session: got error %v, want ErrNotOwned", err)
	}

	_, err = m.CheckPayment("s6", unknownAddress)
	if !IsErrorCode(err, ErrNotOwned) {
		t.Errorf("unknown address: got error %v, want ErrNotOwned", err)
	}

	_, err = m.CheckPayment("s6", "not-an-address")
	if !IsErrorCode(err, ErrValidation) {
		t.Errorf("malformed address: got error %v, want ErrValidation", err)
	}
}

func TestCheckPaymentRateLimit(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	generated := generateTestPayment(t, m, "s7", 100)

	_, err := m.CheckPayment("s7", generated.Address)
	if err != nil {
		t.Fatalf("first check: unexpected error: %+v", err)
	}
	_, err = m.CheckPayment("s7", generated.Address)
	if !IsErrorCode(err, ErrRateLimited) {
		t.Errorf("second check: got error %v, want ErrRateLimited", err)
	}
}

func TestCheckPaymentStates(t *testing.T) {
	probe := &stubProbe{}
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)
	defer teardown()

	generated := generateTestPayment(t, m, "s8", 100)

	probe.result = &explorer.ProbeResult{State: explorer.StateNoPayment}
	result, err := m.CheckPayment("s8", generated.Address)
	if err != nil {
		t.Fatalf("no payment: unexpected error: %+v", err)
	}
	if result.Paid || result.Confirmed {
		t.Errorf("no payment: got paid=%t confirmed=%t, want false/false",
			result.Paid, result.Confirmed)
	}
	if result.RequiredConfirmations != 3 {
		t.Errorf("required confirmations is %d, want 3", result.RequiredConfirmations)
	}

	m.checkLimit = newOpenWindow()
	probe.result = &explorer.ProbeResult{
		State:  explorer.StatePending,
		TxID:   "aa11",
		Amount: generated.AmountBTC,
	}
	result, err = m.CheckPayment("s8", generated.Address)
	if err != nil {
		t.Fatalf("pending: unexpected error: %+v", err)
	}
	if !result.Paid || result.Confirmed {
		t.Errorf("pending: got paid=%t confirmed=%t, want true/false",
			result.Paid, result.Confirmed)
	}
	if result.TxID != "aa11" {
		t.Errorf("pending: tx id is %s, want aa11", result.TxID)
	}

	// Confirmed but still short of the required depth reads as pending.
	probe.result = &explorer.ProbeResult{
		State:         explorer.StateConfirmed,
		TxID:          "aa11",
		Amount:        generated.AmountBTC,
		Confirmations: 2,
	}
	result, err = m.CheckPayment("s8", generated.Address)
	if err != nil {
		t.Fatalf("shallow confirmation: unexpected error: %+v", err)
	}
	if !result.Paid || result.Confirmed {
		t.Errorf("shallow confirmation: got paid=%t confirmed=%t, want true/false",
			result.Paid, result.Confirmed)
	}
}

func TestCheckPaymentSettles(t *testing.T) {
	oracle := &stubOracle{price: 45000}
	probe := &stubProbe{}
	m, teardown := newTestManager(t, oracle, probe)
	defer teardown()

	generated := generateTestPayment(t, m, "s9", 100)

	// The donation is valued at the rate in effect now, not at generation.
	oracle.price = 50000
	probe.result = &explorer.ProbeResult{
		State:         explorer.StateConfirmed,
		TxID:          "bb22",
		Amount:        generated.AmountBTC,
		Confirmations: 3,
	}
	result, err := m.CheckPayment("s9", generated.Address)
	if err != nil {
		t.Fatalf("CheckPayment: unexpected error: %+v", err)
	}
	if !result.Confirmed {
		t.Fatal("payment did not confirm")
	}
	if !result.DonationCreated {
		t.Error("donation was not created by this call")
	}
	wantUSD := generated.AmountBTC.ToBTC() * 50000
	if diff := result.AmountUSD - wantUSD; diff > 0.01 || diff < -0.01 {
		t.Errorf("donation amount is $%.4f, want $%.4f", result.AmountUSD, wantUSD)
	}

	donation, err := dbaccess.DonationByPaymentID(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the donation: %+v", err)
	}
	if donation.PaymentMethod != models.MethodBitcoin {
		t.Errorf("payment method is %s, want %s",
			donation.PaymentMethod, models.MethodBitcoin)
	}
	if donation.DisplayName != "Anonymous" {
		t.Errorf("display name is %s, want Anonymous", donation.DisplayName)
	}

	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusConfirmed {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusConfirmed)
	}
	if payment.TxID == nil || *payment.TxID != "bb22" {
		t.Errorf("stored tx id is %v, want bb22", payment.TxID)
	}

	// A later check returns the settled result without probing again.
	m.checkLimit = newOpenWindow()
	probeCalls := probe.calls
	result, err = m.CheckPayment("s9", generated.Address)
	if err != nil {
		t.Fatalf("repeated check: unexpected error: %+v", err)
	}
	if !result.Confirmed || result.DonationCreated {
		t.Errorf("repeated check: got confirmed=%t created=%t, want true/false",
			result.Confirmed, result.DonationCreated)
	}
	if probe.calls != probeCalls {
		t.Error("repeated check probed the explorers for a settled payment")
	}
}

func TestCheckPaymentUnderpayment(t *testing.T) {
	probe := &stubProbe{}
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)
	defer teardown()

	// $450 at 45000 quotes exactly 0.01 BTC.
	generated := generateTestPayment(t, m, "s10", 450)

	half, _ := btcutil.NewAmount(0.005)
	probe.result = &explorer.ProbeResult{
		State:         explorer.StateConfirmed,
		TxID:          "cc33",
		Amount:        half,
		Confirmations: 3,
	}
	_, err := m.CheckPayment("s10", generated.Address)
	if !IsErrorCode(err, ErrUnderpayment) {
		t.Fatalf("got error %v, want ErrUnderpayment", err)
	}

	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusExpired {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusExpired)
	}
	_, err = dbaccess.DonationByPaymentID(m.db, generated.Address)
	if !dbaccess.IsNotFoundError(err) {
		t.Errorf("an underpaid attempt produced a donation row")
	}
}

func TestAmountTolerance(t *testing.T) {
	tests := []struct {
		name         string
		receivedSats int64
		underpaid    bool
	}{
		{name: "short by exactly the tolerance", receivedSats: 221222},
		{name: "short by one satoshi beyond", receivedSats: 221221, underpaid: true},
		{name: "overpaid beyond the tolerance", receivedSats: 300000},
	}

	for i, test := range tests {
		probe := &stubProbe{}
		m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)

		sessionID := "tolerance-" + string(rune('a'+i))
		generated := generateTestPayment(t, m, sessionID, 100) // 222222 sats

		probe.result = &explorer.ProbeResult{
			State:         explorer.StateConfirmed,
			TxID:          "dd44",
			Amount:        btcutil.Amount(test.receivedSats),
			Confirmations: 3,
		}
		result, err := m.CheckPayment(sessionID, generated.Address)
		if test.underpaid {
			if !IsErrorCode(err, ErrUnderpayment) {
				t.Errorf("%s: got error %v, want ErrUnderpayment", test.name, err)
			}
		} else {
			if err != nil {
				t.Errorf("%s: unexpected error: %+v", test.name, err)
			} else if !result.Confirmed {
				t.Errorf("%s: payment did not confirm", test.name)
			}
		}
		teardown()
	}
}

func TestMonitorSettlesAtStoredRate(t *testing.T) {
	oracle := &stubOracle{price: 45000}
	probe := &stubProbe{}
	m, teardown := newTestManager(t, oracle, probe)
	defer teardown()

	generated := generateTestPayment(t, m, "s11", 100)

	// The rate moving after generation must not change what the donor is
	// credited with on the background path.
	oracle.price = 90000
	probe.result = &explorer.ProbeResult{
		State:         explorer.StateConfirmed,
		TxID:          "ee55",
		Amount:        generated.AmountBTC,
		Confirmations: 3,
	}
	m.monitorCheck(generated.Address)

	donation, err := dbaccess.DonationByPaymentID(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the donation: %+v", err)
	}
	if diff := donation.AmountUSD - 100; diff > 0.01 || diff < -0.01 {
		t.Errorf("donation amount is $%.4f, want about $100", donation.AmountUSD)
	}

	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusConfirmed {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusConfirmed)
	}
}

func TestMonitorExpiresOverduePayment(t *testing.T) {
	probe := &stubProbe{}
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)
	defer teardown()

	generated := generateTestPayment(t, m, "s12", 100)
	dbResult := m.db.Model(&models.PendingPayment{}).
		Where("address = ?", generated.Address).
		Update("expires_at", time.Now().Add(-time.Millisecond))
	if dbResult.Error != nil {
		t.Fatalf("couldn't backdate the expiry: %s", dbResult.Error)
	}

	m.monitorCheck(generated.Address)

	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusExpired {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusExpired)
	}
	if probe.calls != 0 {
		t.Error("monitor probed the explorers for an overdue payment")
	}
	_, err = dbaccess.DonationByPaymentID(m.db, generated.Address)
	if !dbaccess.IsNotFoundError(err) {
		t.Error("an expired attempt produced a donation row")
	}
}

func TestMonitorIsNoOpOnTerminalPayment(t *testing.T) {
	probe := &stubProbe{}
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)
	defer teardown()

	generated := generateTestPayment(t, m, "s13", 100)
	err := dbaccess.SetPaymentStatus(m.db, generated.Address, models.StatusConfirmed)
	if err != nil {
		t.Fatalf("couldn't set the status: %+v", err)
	}

	m.monitorCheck(generated.Address)
	if probe.calls != 0 {
		t.Error("monitor probed the explorers for a settled payment")
	}
}

func TestMonitorAttachesPendingTransaction(t *testing.T) {
	probe := &stubProbe{}
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)
	defer teardown()

	generated := generateTestPayment(t, m, "s14", 100)
	probe.result = &explorer.ProbeResult{
		State:  explorer.StatePending,
		TxID:   "ff66",
		Amount: generated.AmountBTC,
	}

	m.monitorCheck(generated.Address)

	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusPending {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusPending)
	}
	if payment.TxID == nil || *payment.TxID != "ff66" {
		t.Errorf("stored tx id is %v, want ff66", payment.TxID)
	}
	if payment.DetectedAt == nil {
		t.Error("detected_at was not set")
	}
}

func TestMarkExpired(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	generated := generateTestPayment(t, m, "s15", 100)

	err := m.MarkExpired("someone-else", generated.Address)
	if !IsErrorCode(err, ErrNotOwned) {
		t.Errorf("foreign session: got error %v, want ErrNotOwned", err)
	}

	err = m.MarkExpired("s15", generated.Address)
	if err != nil {
		t.Fatalf("MarkExpired: unexpected error: %+v", err)
	}
	payment, err := dbaccess.PendingPaymentByAddress(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.Status != models.StatusExpired {
		t.Errorf("status is %s, want %s", payment.Status, models.StatusExpired)
	}

	// Repeating the call is a no-op, not an error.
	err = m.MarkExpired("s15", generated.Address)
	if err != nil {
		t.Errorf("repeated MarkExpired: unexpected error: %+v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	overdue := generateTestPayment(t, m, "s16", 10)
	confirmed := generateTestPayment(t, m, "s17", 20)

	dbResult := m.db.Model(&models.PendingPayment{}).
		Where("address = ?", overdue.Address).
		Update("expires_at", time.Now().Add(-time.Hour))
	if dbResult.Error != nil {
		t.Fatalf("couldn't backdate the expiry: %s", dbResult.Error)
	}
	err := dbaccess.SetPaymentStatus(m.db, confirmed.Address, models.StatusConfirmed)
	if err != nil {
		t.Fatalf("couldn't set the status: %+v", err)
	}

	counts, err := m.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired: unexpected error: %+v", err)
	}
	if counts.Expired != 1 {
		t.Errorf("expired %d payments, want 1", counts.Expired)
	}
	if counts.DeletedConfirmed != 1 {
		t.Errorf("deleted %d confirmed payments, want 1", counts.DeletedConfirmed)
	}
	// The freshly expired row is within retention and must survive.
	if counts.DeletedExpired != 0 {
		t.Errorf("deleted %d expired payments, want 0", counts.DeletedExpired)
	}

	_, err = dbaccess.PendingPaymentByAddress(m.db, confirmed.Address)
	if !dbaccess.IsNotFoundError(err) {
		t.Error("the confirmed row survived cleanup")
	}
	payment, err := dbaccess.PendingPaymentByAddress(m.db, overdue.Address)
	if err != nil {
		t.Fatalf("couldn't read back the overdue payment: %+v", err)
	}
	if payment.Status != models.StatusExpired {
		t.Errorf("overdue payment status is %s, want %s",
			payment.Status, models.StatusExpired)
	}
}

func TestResumeMonitors(t *testing.T) {
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, &stubProbe{})
	defer teardown()

	inFlight := generateTestPayment(t, m, "s18", 10)
	settled := generateTestPayment(t, m, "s19", 20)
	err := dbaccess.SetPaymentStatus(m.db, settled.Address, models.StatusConfirmed)
	if err != nil {
		t.Fatalf("couldn't set the status: %+v", err)
	}

	err = m.ResumeMonitors()
	if err != nil {
		t.Fatalf("ResumeMonitors: unexpected error: %+v", err)
	}

	payment, err := dbaccess.PendingPaymentByAddress(m.db, inFlight.Address)
	if err != nil {
		t.Fatalf("couldn't read back the pending payment: %+v", err)
	}
	if payment.ScheduledJobID == nil {
		t.Error("no monitor job was recorded for the in-flight payment")
	}
}

func TestGenerateAddressCarriesMetadata(t *testing.T) {
	probe := &stubProbe{}
	m, teardown := newTestManager(t, &stubOracle{price: 45000}, probe)
	defer teardown()

	metadata := &Metadata{
		PlayerName:    "Jesse",
		UsePlayerName: true,
		Message:       "get well soon",
	}
	generated, err := m.GenerateAddress("s20", 100, metadata)
	if err != nil {
		t.Fatalf("GenerateAddress: unexpected error: %+v", err)
	}

	probe.result = &explorer.ProbeResult{
		State:         explorer.StateConfirmed,
		TxID:          "0707",
		Amount:        generated.AmountBTC,
		Confirmations: 3,
	}
	m.monitorCheck(generated.Address)

	donation, err := dbaccess.DonationByPaymentID(m.db, generated.Address)
	if err != nil {
		t.Fatalf("couldn't read back the donation: %+v", err)
	}
	if donation.DisplayName != "Jesse" {
		t.Errorf("display name is %s, want Jesse", donation.DisplayName)
	}
	if donation.Message == nil || *donation.Message != "get well soon" {
		t.Errorf("message is %v, want 'get well soon'", donation.Message)
	}
}

// newOpenWindow returns a check limiter that never blocks, for tests that
// poll the same session repeatedly.
func newOpenWindow() *ratelimit.FixedWindow {
	return ratelimit.NewFixedWindow(0)
}
