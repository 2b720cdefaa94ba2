package models

import (
	"time"
)

// PaymentStatus is the lifecycle status of a PendingPayment.
type PaymentStatus string

// Pending payment lifecycle states. Confirmed and Expired are terminal.
const (
	StatusInitialized PaymentStatus = "initialized"
	StatusPending     PaymentStatus = "pending"
	StatusConfirmed   PaymentStatus = "confirmed"
	StatusExpired     PaymentStatus = "expired"
)

// Terminal returns true for statuses that do not transition any further.
func (s PaymentStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusExpired
}

// Payment methods recorded on donations.
const (
	MethodStripe  = "stripe"
	MethodPayPal  = "paypal"
	MethodBitcoin = "bitcoin"
)

// Donation is a terminal ledger record. It is created exactly once per
// payment and never updated or deleted. PaymentID is unique across the
// ledger; for Bitcoin donations it is the receive address.
type Donation struct {
	ID            uint64  `gorm:"primary_key"`
	AmountUSD     float64 `gorm:"not null"`
	DisplayName   string  `gorm:"size:50;not null"`
	PaymentID     string  `gorm:"size:100;unique_index;not null"`
	PaymentMethod string  `gorm:"size:16;not null"`
	Message       *string `gorm:"size:500"`
	CreatedAt     time.Time
}

// PendingPayment is an in-flight attempt to receive a Bitcoin donation at a
// derived address. The expected BTC amount is stored in satoshis.
type PendingPayment struct {
	ID                 uint64  `gorm:"primary_key"`
	SessionID          string  `gorm:"size:100;not null;index;index:idx_session_amount"`
	Address            string  `gorm:"size:100;unique_index;not null"`
	ExpectedAmountSats int64   `gorm:"not null"`
	ExpectedAmountUSD  float64 `gorm:"not null;index:idx_session_amount"`
	ExchangeRate       float64 `gorm:"not null"`
	DerivationIndex    uint32  `gorm:"not null"`
	PlayerName         *string `gorm:"size:50"`
	UsePlayerName      bool
	Message            *string       `gorm:"size:500"`
	Status             PaymentStatus `gorm:"size:16;not null;index;index:idx_status_expires"`
	TxID               *string       `gorm:"size:64"`
	DetectedAt         *time.Time
	ScheduledJobID     *uint64
	CreatedAt          time.Time
	ExpiresAt          time.Time `gorm:"not null;index:idx_status_expires"`
}

// DisplayName resolves the name a donation for this payment should carry.
func (p *PendingPayment) DisplayName() string {
	if p.UsePlayerName && p.PlayerName != nil && *p.PlayerName != "" {
		return *p.PlayerName
	}
	return "Anonymous"
}

// DerivationCounter is a single-row entity holding the next receive address
// derivation index. It is lazily created on first use and its value is
// monotonically non-decreasing.
type DerivationCounter struct {
	Name  string `gorm:"primary_key;size:50"`
	Value uint32 `gorm:"not null"`
}

// NextDerivationIndexKey is the name of the single DerivationCounter row.
const NextDerivationIndexKey = "next_derivation_index"
