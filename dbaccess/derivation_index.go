package dbaccess

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/models"
)

// NextDerivationIndex atomically bumps the derivation counter and returns the
// prior value. The counter row is lazily created on first use. The atomic
// read-modify-write is the serialization point that guarantees every address
// handed out has a unique index.
func NextDerivationIndex(db *gorm.DB) (uint32, error) {
	var index uint32
	err := db.Transaction(func(tx *gorm.DB) error {
		dbResult := tx.Exec(
			"UPDATE derivation_counters SET value = value + 1 WHERE name = ?",
			models.NextDerivationIndexKey)
		if dbResult.Error != nil {
			return errors.Wrap(dbResult.Error, "couldn't bump the derivation counter")
		}

		if dbResult.RowsAffected == 0 {
			counter := &models.DerivationCounter{
				Name:  models.NextDerivationIndexKey,
				Value: 1,
			}
			createResult := tx.Create(counter)
			if createResult.Error == nil {
				index = 0
				return nil
			}
			// A concurrent transaction created the row between our bump and
			// our insert. Bump the freshly created row instead.
			if !isDuplicateEntryError(createResult.Error) {
				return errors.Wrap(createResult.Error, "couldn't create the derivation counter")
			}
			dbResult = tx.Exec(
				"UPDATE derivation_counters SET value = value + 1 WHERE name = ?",
				models.NextDerivationIndexKey)
			if dbResult.Error != nil {
				return errors.Wrap(dbResult.Error, "couldn't bump the derivation counter")
			}
		}

		counter := &models.DerivationCounter{}
		dbResult = tx.Where(&models.DerivationCounter{Name: models.NextDerivationIndexKey}).
			First(counter)
		if hasDBError(dbResult) {
			return NewErrorFromDBErrors("couldn't read the derivation counter: ",
				dbResult.GetErrors())
		}
		index = counter.Value - 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}
