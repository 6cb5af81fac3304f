package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/internal/tokens/validate", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "good-token", req["token"])

		json.NewEncoder(w).Encode(map[string]any{"valid": true, "user_id": 42})
	}))
	defer srv.Close()

	client := New(srv.URL)
	userID, err := client.ValidateToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestValidateTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.ValidateToken(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"valid": false})
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.ValidateToken(context.Background(), "stale-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
