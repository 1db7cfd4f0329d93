package commands

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalena/internal/auth"
	"kalena/internal/config"
)

type scriptedPrompter struct {
	answers []string
}

func (s *scriptedPrompter) next() (string, error) {
	if len(s.answers) == 0 {
		return "", errors.New("no more input")
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scriptedPrompter) ReadLine(string) (string, error)   { return s.next() }
func (s *scriptedPrompter) ReadSecret(string) (string, error) { return s.next() }

func TestHashPasswordPrintsSnippet(t *testing.T) {
	var out bytes.Buffer
	err := HashPassword(nil, &scriptedPrompter{answers: []string{"admin", "pw", "pw"}}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "username: admin")
	assert.Contains(t, out.String(), `password_hash: "$argon2id$`)
}

func TestHashPasswordWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	var out bytes.Buffer
	err := HashPassword([]string{"-config", path, "-username", "ops"}, &scriptedPrompter{answers: []string{"pw", "pw"}}, &out)
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "ops", cfg.BasicAuth.Username)
	ok, err := auth.VerifyPassword("pw", cfg.BasicAuth.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordRejects(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    string
	}{
		{"empty user", []string{"  ", "pw", "pw"}, "username"},
		{"empty password", []string{"admin", "", ""}, "password cannot be empty"},
		{"mismatch", []string{"admin", "pw", "px"}, "do not match"},
		{"eof", []string{"admin"}, "read password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HashPassword(nil, &scriptedPrompter{answers: tt.answers}, &bytes.Buffer{})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
