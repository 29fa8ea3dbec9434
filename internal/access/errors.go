package access

import "errors"

var (
	// ErrUnauthenticated means no valid principal could be resolved.
	ErrUnauthenticated = errors.New("access: unauthenticated")

	// ErrForbidden is returned for every denied tenant resolution. The
	// cause (missing grant, revoked grant, wrong tenant) is deliberately
	// not distinguishable from the outside.
	ErrForbidden = errors.New("access: forbidden")

	// ErrInvalidToken covers both unknown and already-consumed invite
	// tokens, with one message for both.
	ErrInvalidToken = errors.New("access: invalid or used token")

	// ErrEmailMismatch means the accepting account's email does not match
	// the invite's target email.
	ErrEmailMismatch = errors.New("access: invite is addressed to a different email")

	// ErrAlreadyAccepted means a re-invite was attempted on an active pairing.
	ErrAlreadyAccepted = errors.New("access: invite already accepted")

	// ErrInvalidInput covers malformed emails and permission sets.
	ErrInvalidInput = errors.New("access: invalid input")

	// ErrNotFound is a storage-level miss for lookups outside the
	// resolver path.
	ErrNotFound = errors.New("access: not found")

	// ErrAlreadyExists is a storage-level uniqueness conflict.
	ErrAlreadyExists = errors.New("access: already exists")
)
