package authz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidIdentity is returned when an identity payload fails validation.
var ErrInvalidIdentity = errors.New("authz: invalid identity")

// GrantInput is the wire shape of a single module grant.
type GrantInput struct {
	Allowed bool     `json:"allowed"`
	Actions []string `json:"actions" validate:"dive,oneof=create read update delete manage"`
}

// IdentityInput is the payload supplied by the authentication layer after a
// successful login.
type IdentityInput struct {
	ID          string                `json:"id" validate:"required"`
	Name        string                `json:"name" validate:"required"`
	Email       string                `json:"email" validate:"required,email"`
	Role        string                `json:"role" validate:"required,oneof=superadmin manager user"`
	Permissions map[string]GrantInput `json:"permissions,omitempty" validate:"-"`
}

// Identity is the authenticated principal of a console session.
type Identity struct {
	ID          string
	Name        string
	Email       string
	Role        Role
	Permissions PermissionTable
}

// IdentitySource yields the current identity, or nil when nobody is logged in.
type IdentitySource interface {
	Identity() *Identity
}

var validate = validator.New()

// NewIdentity validates input and builds an Identity. A missing permissions
// object yields an empty table.
func NewIdentity(input IdentityInput) (*Identity, error) {
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIdentity, describe(err))
	}
	table, err := buildTable(input.Permissions)
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:          input.ID,
		Name:        input.Name,
		Email:       input.Email,
		Role:        Role(input.Role),
		Permissions: table,
	}, nil
}

func buildTable(raw map[string]GrantInput) (PermissionTable, error) {
	if len(raw) == 0 {
		return PermissionTable{}, nil
	}
	grants := make(map[string]ModuleGrant, len(raw))
	for name, in := range raw {
		module := normalizeModule(name)
		if module == "" {
			return PermissionTable{}, fmt.Errorf("%w: empty module name", ErrInvalidIdentity)
		}
		if _, dup := grants[module]; dup {
			return PermissionTable{}, fmt.Errorf("%w: duplicate module %q", ErrInvalidIdentity, module)
		}
		if err := validate.Struct(in); err != nil {
			return PermissionTable{}, fmt.Errorf("%w: module %q: %s", ErrInvalidIdentity, module, describe(err))
		}
		actions := make(map[Action]struct{}, len(in.Actions))
		for _, a := range in.Actions {
			actions[Action(a)] = struct{}{}
		}
		grants[module] = ModuleGrant{allowed: in.Allowed, actions: actions}
	}
	return PermissionTable{grants: grants}, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// Input converts the identity back to its wire shape.
func (i *Identity) Input() IdentityInput {
	if i == nil {
		return IdentityInput{}
	}
	return IdentityInput{
		ID:          i.ID,
		Name:        i.Name,
		Email:       i.Email,
		Role:        string(i.Role),
		Permissions: i.Permissions.input(),
	}
}

// MarshalJSON encodes the identity in its wire shape.
func (i *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Input())
}

// UnmarshalJSON decodes and revalidates an identity.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var in IdentityInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	id, err := NewIdentity(in)
	if err != nil {
		return err
	}
	*i = *id
	return nil
}
