// package repositories provides persistence layer implementations for all model types.
package repositories

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrStaleWrite is returned when a conditional update finds the row changed since it was read.
var ErrStaleWrite = fmt.Errorf("row changed since it was read")

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
