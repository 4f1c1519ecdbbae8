package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFixtureIsValid(t *testing.T) {
	users, err := parseFixture(defaultFixture)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "superadmin", users[0].Role)
	assert.Equal(t, []string{"read"}, users[2].Permissions["products"].Actions)
}

func TestParseFixtureRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"unknown role":   `users: [{name: A, email: a@x.io, password: longenough, role: auditor}]`,
		"bad action":     `users: [{name: A, email: a@x.io, password: longenough, role: user, permissions: {tasks: {allowed: true, actions: [approve]}}}]`,
		"short password": `users: [{name: A, email: a@x.io, password: short, role: user}]`,
		"duplicate":      `users: [{name: A, email: a@x.io, password: longenough, role: user}, {name: B, email: A@X.io, password: longenough, role: user}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseFixture([]byte(raw))
			assert.Error(t, err)
		})
	}
}
