package payments

import (
	"time"

	"github.com/JasonDocton/rad-crowdfunding/dbaccess"
	"github.com/JasonDocton/rad-crowdfunding/explorer"
	"github.com/JasonDocton/rad-crowdfunding/models"
)

// scheduleMonitorCheck arms a one-shot background probe of the address after
// the given delay. The job id is persisted on the row for observability;
// failing to record it is not fatal.
func (m *Manager) scheduleMonitorCheck(address string, delay time.Duration) {
	jobID := m.sched.RunAfter(delay, func() {
		m.monitorCheck(address)
	})
	if jobID == 0 {
		// The scheduler is stopping; the monitor chain resumes on the next
		// daemon start via ResumeMonitors.
		return
	}
	err := dbaccess.UpdateScheduledJob(m.db, address, uint64(jobID))
	if err != nil {
		log.Warnf("Couldn't record scheduler job %d for address %s: %s",
			jobID, address, err)
	}
}

// monitorCheck runs one iteration of the monitor loop for an address and
// reschedules itself while the payment is still in flight. The chain of
// reschedules ends when the payment reaches a terminal state or its row
// disappears.
func (m *Manager) monitorCheck(address string) {
	payment, err := dbaccess.PendingPaymentByAddress(m.db, address)
	if err != nil {
		if dbaccess.IsNotFoundError(err) {
			log.Debugf("Stopping monitor for %s: the row is gone", address)
			return
		}
		log.Errorf("Couldn't load pending payment %s, retrying in %s: %s",
			address, monitorInterval, err)
		m.scheduleMonitorCheck(address, monitorInterval)
		return
	}

	if payment.Status.Terminal() {
		log.Debugf("Stopping monitor for %s: status is %s", address, payment.Status)
		return
	}
	if time.Now().After(payment.ExpiresAt) {
		log.Infof("Payment window for %s closed without a confirmed "+
			"transaction, expiring", address)
		err := dbaccess.SetPaymentStatus(m.db, address, models.StatusExpired)
		if err != nil {
			log.Errorf("Couldn't expire %s: %s", address, err)
		}
		return
	}

	result := m.probe.Probe(address)
	switch result.State {
	case explorer.StateAPIFailed, explorer.StateNoPayment:
		m.scheduleMonitorCheck(address, monitorInterval)

	case explorer.StatePending:
		m.attachIfNew(payment, result.TxID)
		m.scheduleMonitorCheck(address, monitorInterval)

	case explorer.StateConfirmed:
		if result.Confirmations < m.cfg.RequiredConfirmations() {
			m.attachIfNew(payment, result.TxID)
			m.scheduleMonitorCheck(address, monitorInterval)
			return
		}
		// Unlike CheckPayment, the monitor settles at the rate locked at
		// generation time: nobody is looking at a receipt, so the donor is
		// credited with what they were quoted.
		_, _, err := m.settle(payment, result, payment.ExchangeRate)
		if err != nil && !IsErrorCode(err, ErrUnderpayment) {
			log.Errorf("Couldn't settle payment to %s: %s", address, err)
		}
	}
}

// attachIfNew records the observed transaction on the row unless it is
// already there.
func (m *Manager) attachIfNew(payment *models.PendingPayment, txID string) {
	if payment.TxID != nil && *payment.TxID == txID {
		return
	}
	if payment.TxID != nil {
		log.Warnf("Address %s saw a different transaction %s replacing %s",
			payment.Address, txID, *payment.TxID)
	}
	err := dbaccess.AttachTransaction(m.db, payment.Address, txID)
	if err != nil {
		log.Errorf("Couldn't attach transaction %s to %s: %s",
			txID, payment.Address, err)
	}
}

// ResumeMonitors re-arms the monitor loop for every payment that was still in
// flight when the daemon last stopped. Called once on startup.
func (m *Manager) ResumeMonitors() error {
	payments, err := dbaccess.NonTerminalPayments(m.db)
	if err != nil {
		return err
	}
	for _, payment := range payments {
		m.scheduleMonitorCheck(payment.Address, monitorInterval)
	}
	if len(payments) > 0 {
		log.Infof("Resumed monitoring of %d in-flight payments", len(payments))
	}
	return nil
}
