package auth

import (
	"strconv"
	"time"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
)

// Account is a stored console login.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	Role         string
	Permissions  map[string]authz.GrantInput
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityInput converts the account into the payload validated by authz.
func (a *Account) IdentityInput() authz.IdentityInput {
	return authz.IdentityInput{
		ID:          strconv.FormatInt(a.ID, 10),
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		Permissions: a.Permissions,
	}
}
