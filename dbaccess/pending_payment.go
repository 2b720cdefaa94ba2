package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/models"
)

// PendingPaymentTTL is the window a derived address stays claimable.
const PendingPaymentTTL = 24 * time.Hour

// CreatePendingPayment inserts a new pending payment row with status
// initialized. The address must not already exist in the table.
func CreatePendingPayment(db *gorm.DB, payment *models.PendingPayment) error {
	now := time.Now()
	payment.Status = models.StatusInitialized
	payment.CreatedAt = now
	payment.ExpiresAt = now.Add(PendingPaymentTTL)

	dbResult := db.Create(payment)
	if dbResult.Error != nil {
		if isDuplicateEntryError(dbResult.Error) {
			return errors.Wrapf(dbResult.Error,
				"a pending payment for address %s already exists", payment.Address)
		}
		return errors.Wrap(dbResult.Error, "couldn't create pending payment")
	}
	return nil
}

// PendingPaymentByAddress returns the pending payment row for the given
// address, or ErrNotFound.
func PendingPaymentByAddress(db *gorm.DB, address string) (*models.PendingPayment, error) {
	payment := &models.PendingPayment{}
	dbResult := db.Where(&models.PendingPayment{Address: address}).First(payment)
	if dbResult.RecordNotFound() {
		return nil, ErrNotFound
	}
	if hasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("couldn't read pending payment: ",
			dbResult.GetErrors())
	}
	return payment, nil
}

// ActivePaymentBySessionAndAmount returns the unexpired, non-terminal pending
// payment matching (session, amount_usd), or ErrNotFound. It is the
// idempotency key for address generation.
func ActivePaymentBySessionAndAmount(db *gorm.DB, sessionID string, amountUSD float64) (*models.PendingPayment, error) {
	payment := &models.PendingPayment{}
	dbResult := db.
		Where("session_id = ? AND expected_amount_usd = ?", sessionID, amountUSD).
		Where("status IN (?)", []models.PaymentStatus{models.StatusInitialized, models.StatusPending}).
		Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		First(payment)
	if dbResult.RecordNotFound() {
		return nil, ErrNotFound
	}
	if hasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("couldn't look up pending payment by session: ",
			dbResult.GetErrors())
	}
	return payment, nil
}

// PaymentOwnedBySession loads the pending payment for address and verifies it
// belongs to sessionID. It returns ErrNotOwned when the row is missing or
// owned by another session, and ErrExpired when the claim window has closed
// before a transaction was seen.
func PaymentOwnedBySession(db *gorm.DB, sessionID string, address string) (*models.PendingPayment, error) {
	payment, err := PendingPaymentByAddress(db, address)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, ErrNotOwned
		}
		return nil, err
	}
	if payment.SessionID != sessionID {
		return nil, ErrNotOwned
	}
	if payment.Status == models.StatusExpired {
		return nil, ErrExpired
	}
	if payment.Status == models.StatusInitialized && time.Now().After(payment.ExpiresAt) {
		return nil, ErrExpired
	}
	return payment, nil
}

// AttachTransaction records the first observed transaction for an address and
// upgrades status initialized to pending. Calling it again with the same txid
// is a no-op; a different txid on a pending row overwrites the stored one and
// is logged by the caller. Terminal rows are left untouched.
func AttachTransaction(db *gorm.DB, address string, txID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		payment := &models.PendingPayment{}
		dbResult := tx.Where(&models.PendingPayment{Address: address}).First(payment)
		if dbResult.RecordNotFound() {
			return ErrNotFound
		}
		if hasDBError(dbResult) {
			return NewErrorFromDBErrors("couldn't read pending payment: ",
				dbResult.GetErrors())
		}

		if payment.Status.Terminal() {
			return nil
		}
		if payment.TxID != nil && *payment.TxID == txID &&
			payment.Status == models.StatusPending {
			return nil
		}

		now := time.Now()
		dbResult = tx.Model(payment).Updates(map[string]interface{}{
			"status":      models.StatusPending,
			"tx_id":       txID,
			"detected_at": now,
		})
		if dbResult.Error != nil {
			return errors.Wrap(dbResult.Error, "couldn't attach transaction")
		}
		return nil
	})
}

// SetPaymentStatus updates the status of the pending payment unconditionally.
// It is used for terminal transitions, which are safe to re-apply.
func SetPaymentStatus(db *gorm.DB, address string, status models.PaymentStatus) error {
	dbResult := db.Model(&models.PendingPayment{}).
		Where("address = ?", address).
		Update("status", status)
	if dbResult.Error != nil {
		return errors.Wrapf(dbResult.Error, "couldn't set payment status to %s", status)
	}
	return nil
}

// MarkExpiredBySession transitions an initialized pending payment owned by
// sessionID to expired. Any other state is a no-op, which makes the operation
// idempotent.
func MarkExpiredBySession(db *gorm.DB, sessionID string, address string) error {
	dbResult := db.Model(&models.PendingPayment{}).
		Where("address = ? AND session_id = ? AND status = ?",
			address, sessionID, models.StatusInitialized).
		Update("status", models.StatusExpired)
	if dbResult.Error != nil {
		return errors.Wrap(dbResult.Error, "couldn't mark pending payment expired")
	}
	return nil
}

// UpdateScheduledJob stores the scheduler job id monitoring the address. It
// is best-effort bookkeeping used for observability.
func UpdateScheduledJob(db *gorm.DB, address string, jobID uint64) error {
	dbResult := db.Model(&models.PendingPayment{}).
		Where("address = ?", address).
		Update("scheduled_job_id", jobID)
	if dbResult.Error != nil {
		return errors.Wrap(dbResult.Error, "couldn't update scheduled job id")
	}
	return nil
}

// NonTerminalPayments returns all pending payments that still need
// monitoring, i.e. rows in status initialized or pending that have not
// passed their expiry.
func NonTerminalPayments(db *gorm.DB) ([]*models.PendingPayment, error) {
	var payments []*models.PendingPayment
	dbResult := db.
		Where("status IN (?)", []models.PaymentStatus{models.StatusInitialized, models.StatusPending}).
		Where("expires_at > ?", time.Now()).
		Find(&payments)
	if hasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("couldn't list non-terminal payments: ",
			dbResult.GetErrors())
	}
	return payments, nil
}
