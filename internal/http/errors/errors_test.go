package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithDetailDoesNotMutateBase(t *testing.T) {
	e := ErrValidation.WithDetail("falta el campo name")
	require.Equal(t, "falta el campo name", e.Detail)
	require.Empty(t, ErrValidation.Detail, "la variable base quedó mutada")
	require.Equal(t, ErrValidation.Code, e.Code)
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := fmt.Errorf("conexión rechazada")
	e := ErrInternal.WithCause(cause)
	require.ErrorIs(t, e, cause)
	require.Nil(t, ErrInternal.Err, "la variable base quedó mutada")
}

func TestFromError(t *testing.T) {
	require.Same(t, ErrForbidden, FromError(ErrForbidden))

	generic := errors.New("algo se rompió")
	e := FromError(generic)
	require.Equal(t, "INTERNAL_SERVER_ERROR", e.Code)
	require.Equal(t, http.StatusInternalServerError, e.HTTPStatus)
	require.ErrorIs(t, e, generic)
}

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-123")

	WriteError(rec, ErrUnknownTenant.WithDetail("subdominio ghost"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "UNKNOWN_TENANT", body["code"])
	require.Equal(t, "subdominio ghost", body["detail"])
	require.Equal(t, "req-123", body["request_id"])
	require.NotEmpty(t, body["timestamp"])
	// La causa interna jamás se serializa.
	require.NotContains(t, body, "err")
}

func TestWriteErrorGenericCollapsesToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("detalle interno sensible"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "sensible")
}
