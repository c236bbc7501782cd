package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.URL+"/token", "web-api-key", server.Client())
}

func TestSignUp(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:signUp", r.URL.Path)
		assert.Equal(t, "web-api-key", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body["email"])
		assert.Equal(t, true, body["returnSecureToken"])

		_, _ = w.Write([]byte(`{
			"localId": "uid-1",
			"email": "a@example.com",
			"idToken": "id-token",
			"refreshToken": "refresh-token",
			"expiresIn": "3600"
		}`))
	})

	creds, err := client.SignUp(context.Background(), "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", creds.Uid)
	assert.Equal(t, "id-token", creds.IdToken)
	assert.Equal(t, "refresh-token", creds.RefreshToken)
	assert.Equal(t, "3600", creds.ExpiresIn)
}

func TestSignUpEmailExists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"EMAIL_EXISTS"}}`))
	})

	_, err := client.SignUp(context.Background(), "a@example.com", "password123")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestSignInRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_PASSWORD"}}`))
	})

	_, err := client.SignIn(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		_, _ = w.Write([]byte(`{
			"user_id": "uid-1",
			"id_token": "new-id-token",
			"refresh_token": "new-refresh",
			"expires_in": "3600"
		}`))
	})

	creds, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", creds.Uid)
	assert.Equal(t, "new-id-token", creds.IdToken)
	assert.Equal(t, "new-refresh", creds.RefreshToken)
}

func TestVerify(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:lookup", r.URL.Path)
		_, _ = w.Write([]byte(`{"users":[{"localId":"uid-9","email":"b@example.com"}]}`))
	})

	uid, email, err := client.Verify(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "uid-9", uid)
	assert.Equal(t, "b@example.com", email)
}

func TestVerifyFailuresMapToUnauthorized(t *testing.T) {
	t.Run("backend rejects", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_ID_TOKEN"}}`))
		})
		_, _, err := client.Verify(context.Background(), "expired")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("no users", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"users":[]}`))
		})
		_, _, err := client.Verify(context.Background(), "orphan")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}
