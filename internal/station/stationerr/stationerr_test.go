package stationerr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapsKnownKinds(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("bad input")))
	require.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("account", "123")))
	require.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("nope")))
	require.Equal(t, http.StatusConflict, HTTPStatus(NotAllowedModification("already voted")))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(Fatal("corrupted index", nil)))
}

func TestHTTPStatusDefaultsForPlainError(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("plain")))
}

func TestAdapterRetryableVsPermanentStatus(t *testing.T) {
	retryable := Adapter("network blip", true, fmt.Errorf("dial tcp: timeout"))
	require.Equal(t, http.StatusBadGateway, retryable.HTTPStatus)

	permanent := Adapter("rejected by chain", false, fmt.Errorf("insufficient balance"))
	require.Equal(t, http.StatusUnprocessableEntity, permanent.HTTPStatus)
}

func TestAsExtractsStationError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Validation("field required"))
	se, ok := As(err)
	require.True(t, ok)
	require.Equal(t, KindValidation, se.Kind)
}
