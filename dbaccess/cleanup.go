package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/models"
)

// ExpiredRetention is how long expired rows are kept before deletion.
const ExpiredRetention = 7 * 24 * time.Hour

// ExpireOverduePayments transitions every initialized or pending row past its
// expiry to expired and returns the number of rows affected.
func ExpireOverduePayments(db *gorm.DB, now time.Time) (int64, error) {
	dbResult := db.Model(&models.PendingPayment{}).
		Where("status IN (?)", []models.PaymentStatus{models.StatusInitialized, models.StatusPending}).
		Where("expires_at < ?", now).
		Update("status", models.StatusExpired)
	if dbResult.Error != nil {
		return 0, errors.Wrap(dbResult.Error, "couldn't expire overdue payments")
	}
	return dbResult.RowsAffected, nil
}

// DeleteConfirmedPayments deletes every confirmed pending payment row. The
// donation ledger is the authoritative record once a payment confirms.
func DeleteConfirmedPayments(db *gorm.DB) (int64, error) {
	dbResult := db.
		Where("status = ?", models.StatusConfirmed).
		Delete(&models.PendingPayment{})
	if dbResult.Error != nil {
		return 0, errors.Wrap(dbResult.Error, "couldn't delete confirmed payments")
	}
	return dbResult.RowsAffected, nil
}

// DeleteExpiredPaymentsBefore deletes expired rows whose expiry is older than
// cutoff.
func DeleteExpiredPaymentsBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	dbResult := db.
		Where("status = ?", models.StatusExpired).
		Where("expires_at < ?", cutoff).
		Delete(&models.PendingPayment{})
	if dbResult.Error != nil {
		return 0, errors.Wrap(dbResult.Error, "couldn't delete expired payments")
	}
	return dbResult.RowsAffected, nil
}
