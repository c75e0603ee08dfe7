package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{" admin ", RoleUser, false},
		{" admin\t", RoleUser, false},
		{"admin\n", RoleUser, false},
		{"user", RoleUser, true},
		{"", RoleUser, false},
		{"ADMIN", RoleUser, false},
		{"superuser", RoleUser, false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.raw)
		assert.Equal(t, tc.want, got, "raw %q", tc.raw)
		assert.Equal(t, tc.ok, ok, "raw %q", tc.raw)
	}
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(ActionCreate, RoleUser))
	require.NoError(t, Authorize(ActionCreate, RoleAdmin))
	require.NoError(t, Authorize(ActionRead, RoleUser))
	require.NoError(t, Authorize(ActionTransition, RoleAdmin))
	require.NoError(t, Authorize(ActionDelete, RoleAdmin))

	require.ErrorIs(t, Authorize(ActionTransition, RoleUser), ErrInsufficientRole)
	require.ErrorIs(t, Authorize(ActionDelete, RoleUser), ErrInsufficientRole)
	require.ErrorIs(t, Authorize(ActionCreate, Role("guest")), ErrInsufficientRole)
	require.ErrorIs(t, Authorize(Action("export"), RoleAdmin), ErrInsufficientRole)
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("Pendiente ")
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("pendiente")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusReceived.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.False(t, StatusOrdered.Terminal())
}

func TestStatusDeletable(t *testing.T) {
	assert.True(t, StatusPending.Deletable())
	assert.True(t, StatusRejected.Deletable())
	assert.False(t, StatusApproved.Deletable())
	assert.False(t, StatusOrdered.Deletable())
	assert.False(t, StatusReceived.Deletable())
	assert.False(t, Status("Borrado").Deletable())
}
