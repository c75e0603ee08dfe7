package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectedEdges = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusRejected: true},
	StatusApproved: {StatusApproved: true, StatusRejected: true, StatusOrdered: true, StatusReceived: true},
	StatusRejected: {},
	StatusOrdered:  {StatusOrdered: true, StatusReceived: true},
	StatusReceived: {StatusReceived: true},
}

func TestEvaluate_AdminGrid(t *testing.T) {
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			v, err := Evaluate(from, to, RoleAdmin)
			require.NoError(t, err)

			want := expectedEdges[from][to]
			assert.Equal(t, want, v.Allowed, "%s -> %s", from, to)
			assert.Equal(t, from, v.From)
			assert.Equal(t, to, v.To)
			if want {
				assert.Equal(t, ReasonNone, v.Reason)
			} else {
				assert.Equal(t, ReasonIllegalTransition, v.Reason, "%s -> %s", from, to)
				assert.False(t, v.RequiresConfirmation)
			}
		}
	}
}

func TestEvaluate_UserAlwaysInsufficientRole(t *testing.T) {
	for _, role := range []Role{RoleUser, Role(""), Role("Admin"), Role("root")} {
		for _, from := range Statuses() {
			for _, to := range Statuses() {
				v, err := Evaluate(from, to, role)
				require.NoError(t, err)
				assert.False(t, v.Allowed)
				assert.Equal(t, ReasonInsufficientRole, v.Reason, "role %q %s -> %s", role, from, to)
				assert.False(t, v.RequiresConfirmation)
			}
		}
	}
}

func TestEvaluate_RejectedIsStrictlyTerminal(t *testing.T) {
	for _, to := range Statuses() {
		v, err := Evaluate(StatusRejected, to, RoleAdmin)
		require.NoError(t, err)
		assert.True(t, v.Denied(), "Rechazado -> %s", to)
	}
}

func TestEvaluate_ReceivedSelfLoopOnly(t *testing.T) {
	v, err := Evaluate(StatusReceived, StatusReceived, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, v.Allowed)

	for _, to := range Statuses() {
		if to == StatusReceived {
			continue
		}
		v, err := Evaluate(StatusReceived, to, RoleAdmin)
		require.NoError(t, err)
		assert.True(t, v.Denied(), "Recibido -> %s", to)
	}
}

func TestEvaluate_RejectionRequiresConfirmation(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusApproved} {
		v, err := Evaluate(from, StatusRejected, RoleAdmin)
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.True(t, v.RequiresConfirmation, "%s -> Rechazado", from)
	}

	v, err := Evaluate(StatusApproved, StatusOrdered, RoleAdmin)
	require.NoError(t, err)
	assert.False(t, v.RequiresConfirmation)
}

func TestEvaluate_Idempotent(t *testing.T) {
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			for _, role := range []Role{RoleAdmin, RoleUser} {
				first, err := Evaluate(from, to, role)
				require.NoError(t, err)
				second, err := Evaluate(from, to, role)
				require.NoError(t, err)
				assert.Equal(t, first, second)
			}
		}
	}
}

func TestEvaluate_InvalidStatus(t *testing.T) {
	_, err := Evaluate(Status("Cancelado"), StatusApproved, RoleAdmin)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = Evaluate(StatusPending, Status("aprobado"), RoleAdmin)
	require.ErrorIs(t, err, ErrInvalidStatus)

	var invalid *InvalidStatusError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "aprobado", invalid.Value)

	// the enum check runs before the role gate
	_, err = Evaluate(StatusPending, Status(""), RoleUser)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestEvaluateRequest(t *testing.T) {
	v, err := EvaluateRequest(Request{OrderID: 7, Current: StatusOrdered, Requested: StatusReceived, Role: RoleAdmin})
	require.NoError(t, err)
	assert.True(t, v.Allowed)
}

func TestAllowedNext(t *testing.T) {
	next, err := AllowedNext(StatusApproved, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusApproved, StatusRejected, StatusOrdered, StatusReceived}, next)

	next, err = AllowedNext(StatusRejected, RoleAdmin)
	require.NoError(t, err)
	assert.Empty(t, next)

	next, err = AllowedNext(StatusPending, RoleUser)
	require.NoError(t, err)
	assert.Empty(t, next)

	_, err = AllowedNext(Status("x"), RoleAdmin)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAllowedNext_DoesNotLeakGraph(t *testing.T) {
	next, err := AllowedNext(StatusOrdered, RoleAdmin)
	require.NoError(t, err)
	next[0] = StatusPending

	v, err := Evaluate(StatusOrdered, StatusOrdered, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
}
