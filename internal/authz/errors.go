package authz

import "errors"

var (
	ErrNotFound        = errors.New("authz: not found")
	ErrConflict        = errors.New("authz: already exists")
	ErrInvalidInput    = errors.New("authz: invalid input")
	ErrForbidden       = errors.New("authz: forbidden")
	ErrUnauthenticated = errors.New("authz: unauthenticated")
	ErrUnknownPage     = errors.New("authz: unknown page")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

