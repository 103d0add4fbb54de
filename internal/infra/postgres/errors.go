package postgres

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"

	"ctf-quiz-service/internal/domain"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

func sqlState(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

func isUniqueViolation(err error) bool { return sqlState(err) == sqlStateUniqueViolation }

func isForeignKeyViolation(err error) bool { return sqlState(err) == sqlStateForeignKeyViolation }

// classified reports whether err already carries a domain error kind.
func classified(err error) bool {
	for _, kind := range []error{
		domain.ErrValidation, domain.ErrUnauthenticated, domain.ErrForbidden,
		domain.ErrConflict, domain.ErrNotFound, domain.ErrStore,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// mapErr translates driver errors into domain errors: no rows becomes
// notFound, a unique violation becomes conflict, anything else a store failure.
func mapErr(op string, err error, notFound, conflict error) error {
	switch {
	case err == nil:
		return nil
	case classified(err):
		return err
	case notFound != nil && errors.Is(err, sql.ErrNoRows):
		return notFound
	case conflict != nil && isUniqueViolation(err):
		return conflict
	}
	return domain.StoreFailure(op, err)
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
