// Package auth enrolls accounts and verifies bearer tokens. It supplies the
// caller identity the core packages treat as ambient; none of them import
// auth back.
package auth

import (
	"time"

	"github.com/traceline-scm/traceline/internal/shared"
)

// MinTokenLength is the smallest token accepted at enrollment.
const MinTokenLength = 12

// Credential binds an account to its bcrypt token hash. One per account,
// written once at enrollment.
type Credential struct {
	Account   shared.Account
	TokenHash string
	CreatedAt time.Time
}

// EnrollRequest is the account enrollment payload.
type EnrollRequest struct {
	Account string `json:"account" validate:"required,max=128"`
	Token   string `json:"token" validate:"required,min=12,max=128"`
}
