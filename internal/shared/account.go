package shared

import "fmt"

// MaxAccountLength bounds account identifiers.
const MaxAccountLength = 128

// Account identifies a participant. Accounts are opaque strings issued
// outside traceline; the empty string marks "no account".
type Account string

// IsZero reports whether the account is unset.
func (a Account) IsZero() bool { return a == "" }

func (a Account) String() string { return string(a) }

// Validate rejects accounts unusable as identifiers.
func (a Account) Validate() error {
	if a.IsZero() {
		return fmt.Errorf("account required: %w", ErrInvalidArgument)
	}
	if len(a) > MaxAccountLength {
		return fmt.Errorf("account exceeds %d characters: %w", MaxAccountLength, ErrInvalidArgument)
	}
	return nil
}
