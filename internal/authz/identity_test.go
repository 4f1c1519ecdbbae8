package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityRejectsMalformedInput(t *testing.T) {
	valid := IdentityInput{ID: "1", Name: "Ana", Email: "ana@test.local", Role: "user"}

	cases := map[string]func(in *IdentityInput){
		"missing id":     func(in *IdentityInput) { in.ID = "" },
		"bad email":      func(in *IdentityInput) { in.Email = "not-an-email" },
		"unknown role":   func(in *IdentityInput) { in.Role = "owner" },
		"unknown action": func(in *IdentityInput) { in.Permissions = map[string]GrantInput{"tasks": {Allowed: true, Actions: []string{"archive"}}} },
		"empty module":   func(in *IdentityInput) { in.Permissions = map[string]GrantInput{" ": {Allowed: true}} },
		"duplicate module": func(in *IdentityInput) {
			in.Permissions = map[string]GrantInput{"tasks": {Allowed: true}, "TASKS": {Allowed: false}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			id, err := NewIdentity(in)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, ErrInvalidIdentity)
		})
	}
}

func TestNewIdentityWithoutPermissions(t *testing.T) {
	id, err := NewIdentity(IdentityInput{ID: "1", Name: "Ana", Email: "ana@test.local", Role: " Manager "})
	require.NoError(t, err)

	assert.Equal(t, RoleManager, id.Role)
	assert.Zero(t, id.Permissions.Len())
	assert.False(t, NewEvaluator(id).HasModuleAccess("users"))
}

func TestIdentityJSONRoundTripRevalidates(t *testing.T) {
	id := mustIdentity(t, "manager", map[string]GrantInput{
		"products": {Allowed: true, Actions: []string{"update", "read", "read"}},
	})

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-1","name":"Test User","email":"user@test.local","role":"manager",
		"permissions":{"products":{"allowed":true,"actions":["read","update"]}}}`, string(data))

	var decoded Identity
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, NewEvaluator(&decoded).CanPerformAction("products", ActionUpdate))

	err = json.Unmarshal([]byte(`{"id":"1","name":"x","email":"x@test.local","role":"root"}`), &decoded)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" SuperAdmin ")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, role)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}
