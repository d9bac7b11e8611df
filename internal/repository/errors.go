package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/clawlink/clawlink/internal/apperr"
)

// isUniqueViolation reports whether err is a unique-constraint violation
// from either supported driver.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.IntegrityViolation()
	}
	// modernc.org/sqlite surfaces constraint failures as plain strings.
	// Only duplicates count; FK and CHECK failures are not conflicts.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// writeErr translates a driver write error into the shared taxonomy.
func writeErr(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.Conflict, conflictMsg, err)
	}
	return err
}

func errIsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// scanErr translates a driver read error into the shared taxonomy.
func scanErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.NotFound, notFoundMsg)
	}
	return err
}
