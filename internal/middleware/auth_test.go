package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts exactly one token and returns a fixed decoded
// token for it.
type stubVerifier struct {
	token   string
	decoded *auth.Token
}

func (v *stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if idToken != v.token {
		return nil, errors.New("invalid token")
	}
	return v.decoded, nil
}

func newTestMiddleware() *AuthMiddleware {
	return NewAuthMiddleware(&stubVerifier{
		token: "valid-token",
		decoded: &auth.Token{
			UID:    "user-1",
			Claims: map[string]any{"email": "ana@example.com"},
		},
	})
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	handler := newTestMiddleware().RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	handler := newTestMiddleware().RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	for _, header := range []string{"valid-token", "Basic dXNlcg==", "Bearer"} {
		req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	handler := newTestMiddleware().RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	var gotOwner string
	var gotInfo AuthInfo
	handler := newTestMiddleware().RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := GetOwnerID(r.Context())
		require.True(t, ok)
		gotOwner = owner
		info, ok := GetAuth(r)
		require.True(t, ok)
		gotInfo = info
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotOwner)
	assert.Equal(t, "ana@example.com", gotInfo.Email)
}

func TestGetOwnerID_Absent(t *testing.T) {
	_, ok := GetOwnerID(context.Background())
	assert.False(t, ok)
}
