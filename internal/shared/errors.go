package shared

import "errors"

// Error kinds recognised across traceline. Services wrap them with
// fmt.Errorf("...: %w", err) so callers classify failures via errors.Is.
var (
	// ErrUnauthorized indicates the caller lacks the required role or identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument indicates malformed or missing input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyExists indicates a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrAlreadyAssigned indicates a one-time assignment attempted twice.
	ErrAlreadyAssigned = errors.New("already assigned")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidRole indicates the target account holds the wrong role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrPolicyDisabled indicates the buyer policy excludes the operation.
	ErrPolicyDisabled = errors.New("disabled by buyer policy")
	// ErrInvalidCredentials indicates bearer token verification failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
