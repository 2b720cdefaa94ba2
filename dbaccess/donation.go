package dbaccess

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/models"
)

// CreateDonation inserts a donation ledger row for the given payment id,
// unless one already exists. It returns true when the row was inserted and
// false when another writer got there first. The unique index on payment_id
// is what makes concurrent detection of the same payment safe.
func CreateDonation(db *gorm.DB, paymentID string, amountUSD float64,
	displayName string, message *string) (bool, error) {

	donation := &models.Donation{
		AmountUSD:     amountUSD,
		DisplayName:   displayName,
		PaymentID:     paymentID,
		PaymentMethod: models.MethodBitcoin,
		Message:       message,
		CreatedAt:     time.Now(),
	}
	dbResult := db.Create(donation)
	if dbResult.Error != nil {
		if isDuplicateEntryError(dbResult.Error) {
			return false, nil
		}
		return false, errors.Wrap(dbResult.Error, "couldn't create donation")
	}
	return true, nil
}

// DonationByPaymentID returns the donation with the given payment id, or
// ErrNotFound.
func DonationByPaymentID(db *gorm.DB, paymentID string) (*models.Donation, error) {
	donation := &models.Donation{}
	dbResult := db.Where(&models.Donation{PaymentID: paymentID}).First(donation)
	if dbResult.RecordNotFound() {
		return nil, ErrNotFound
	}
	if hasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("couldn't read donation: ",
			dbResult.GetErrors())
	}
	return donation, nil
}

// RecentDonations returns up to limit donations, newest first.
func RecentDonations(db *gorm.DB, limit int) ([]*models.Donation, error) {
	var donations []*models.Donation
	dbResult := db.Order("id DESC").Limit(limit).Find(&donations)
	if hasDBError(dbResult) {
		return nil, NewErrorFromDBErrors("couldn't list donations: ",
			dbResult.GetErrors())
	}
	return donations, nil
}
