package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{InvalidInput("articulo", "missing"), http.StatusBadRequest},
		{InvalidStatus("Cancelado"), http.StatusUnprocessableEntity},
		{InsufficientRole("no"), http.StatusForbidden},
		{IllegalTransition("Aprobado", "Pendiente"), http.StatusConflict},
		{Conflict("race"), http.StatusConflict},
		{ConfirmationRequired("confirm"), http.StatusPreconditionRequired},
		{NotFound("missing"), http.StatusNotFound},
		{StorageFailure("db", errors.New("io")), http.StatusInternalServerError},
		{Internal("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), string(tc.err.Kind()))
	}
}

func TestGRPCCodes(t *testing.T) {
	assert.Equal(t, codes.PermissionDenied, InsufficientRole("no").GRPCCode())
	assert.Equal(t, codes.FailedPrecondition, IllegalTransition("a", "b").GRPCCode())
	assert.Equal(t, codes.NotFound, NotFound("x").GRPCCode())
	assert.Equal(t, codes.Unavailable, StorageFailure("x", nil).GRPCCode())
}

func TestIllegalTransitionCarriesStatuses(t *testing.T) {
	err := IllegalTransition("Aprobado", "Pendiente", WithDetail("role", "admin"))

	from, ok := err.Detail("from")
	require.True(t, ok)
	assert.Equal(t, "Aprobado", from)
	to, _ := err.Detail("to")
	assert.Equal(t, "Pendiente", to)
	role, _ := err.Detail("role")
	assert.Equal(t, "admin", role)
}

func TestInvalidInputNamesField(t *testing.T) {
	err := InvalidInput("proveedor", "proveedor is required")
	field, ok := err.Detail("field")
	require.True(t, ok)
	assert.Equal(t, "proveedor", field)
	assert.Equal(t, KindInvalidInput, err.Kind())
}

func TestFromAndKindOf(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("load: %w", StorageFailure("failed to load order", cause))

	assert.Equal(t, KindStorageFailure, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Nil(t, From(nil))
}

func TestNilReceiver(t *testing.T) {
	var e *AppError
	assert.Equal(t, "<nil>", e.Error())
	assert.Equal(t, KindInternal, e.Kind())
	assert.Nil(t, e.Details())
	_, ok := e.Detail("x")
	assert.False(t, ok)
}
