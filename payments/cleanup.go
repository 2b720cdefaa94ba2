package payments

import (
	"time"

	"github.com/JasonDocton/rad-crowdfunding/dbaccess"
)

// CleanupCounts reports what one cleanup sweep did.
type CleanupCounts struct {
	Expired          int64
	DeletedConfirmed int64
	DeletedExpired   int64
}

// CleanupExpired runs one cleanup sweep: overdue in-flight payments are
// expired, confirmed rows are deleted (the donation ledger is their record of
// truth), and expired rows past the retention window are deleted.
func (m *Manager) CleanupExpired() (*CleanupCounts, error) {
	now := time.Now()
	counts := &CleanupCounts{}

	var err error
	counts.Expired, err = dbaccess.ExpireOverduePayments(m.db, now)
	if err != nil {
		return nil, err
	}
	counts.DeletedConfirmed, err = dbaccess.DeleteConfirmedPayments(m.db)
	if err != nil {
		return nil, err
	}
	counts.DeletedExpired, err = dbaccess.DeleteExpiredPaymentsBefore(m.db,
		now.Add(-dbaccess.ExpiredRetention))
	if err != nil {
		return nil, err
	}

	if counts.Expired+counts.DeletedConfirmed+counts.DeletedExpired > 0 {
		log.Infof("Cleanup sweep expired %d payments, deleted %d confirmed "+
			"and %d stale expired rows", counts.Expired,
			counts.DeletedConfirmed, counts.DeletedExpired)
	}
	return counts, nil
}

// StartHourlyCleanup schedules CleanupExpired to run once per hour until the
// scheduler stops.
func (m *Manager) StartHourlyCleanup() {
	m.sched.RunHourly(func() {
		_, err := m.CleanupExpired()
		if err != nil {
			log.Errorf("Cleanup sweep failed: %s", err)
		}
	})
}
