package dbaccess

import (
	"strings"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a queried row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotOwned is returned when a session tries to act on a pending
	// payment that belongs to another session.
	ErrNotOwned = errors.New("pending payment is not owned by this session")

	// ErrExpired is returned when a pending payment's window has closed.
	ErrExpired = errors.New("pending payment has expired")
)

// IsNotFoundError returns whether err is an ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// NewErrorFromDBErrors takes a slice of database errors and a prefix, and
// returns an error with all of the database errors formatted to one string
// with the given prefix.
func NewErrorFromDBErrors(prefix string, dbErrors []error) error {
	dbErrorsStrings := make([]string, len(dbErrors))
	for i, dbErr := range dbErrors {
		dbErrorsStrings[i] = "\"" + dbErr.Error() + "\""
	}
	return errors.Errorf("%s [%s]", prefix, strings.Join(dbErrorsStrings, ","))
}

// hasDBError returns true if the given dbResult contains an error that isn't
// RecordNotFound.
func hasDBError(dbResult *gorm.DB) bool {
	return !(dbResult.RecordNotFound() && len(dbResult.GetErrors()) == 1) &&
		len(dbResult.GetErrors()) > 0
}

// isDuplicateEntryError returns true when err is a unique index violation.
// Both the MySQL and the sqlite3 (tests) drivers are recognized.
func isDuplicateEntryError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
