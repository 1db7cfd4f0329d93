package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("MySecurePassword123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"), hash)

	hash2, err := HashPassword("MySecurePassword123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2, "salts must differ")
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{"correct password", "correct horse", hash, true, false},
		{"wrong password", "battery staple", hash, false, false},
		{"invalid format", "correct horse", "invalid", false, true},
		{"wrong algorithm", "correct horse", "$bcrypt$v=1$m=65536,t=1,p=4$c2FsdA$aGFzaA", false, true},
		{"bad salt", "correct horse", "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA", false, true},
		{"zero params", "correct horse", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, tt.hash)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidHash)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	h := BasicAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), "kalena", "admin", hash, "/health")

	tests := []struct {
		name       string
		path       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"open path", "/health", "", "", false, http.StatusNoContent},
		{"no credentials", "/", "", "", false, http.StatusUnauthorized},
		{"wrong user", "/", "root", "s3cret", true, http.StatusUnauthorized},
		{"wrong password", "/", "admin", "nope", true, http.StatusUnauthorized},
		{"ok", "/", "admin", "s3cret", true, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="kalena"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
