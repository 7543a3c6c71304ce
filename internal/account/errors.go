package account

import "errors"

var (
	// ErrAlreadyExists: register hit an email that is already an account.
	ErrAlreadyExists = errors.New("email already registered")

	// ErrInvalidCredentials covers both "no such account" and "wrong
	// password". Keeping them indistinguishable avoids leaking which
	// emails are registered.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated: a mutating operation was attempted anonymously.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound: the session resolved to an account that no longer exists.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate is returned by Store.CreateUser when the storage-layer
	// uniqueness constraint rejects an insert. The reconciliation path
	// treats it as "lost the race", not as a failure.
	ErrDuplicate = errors.New("duplicate key")
)
