package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoiredev/grimoire/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	return m
}

func sampleCreds() domain.Credentials {
	return domain.Credentials{
		Platform: domain.PlatformGitHub,
		Username: "dev",
		Token:    "ghp_secret",
	}
}

func TestCreateAndCredentialsRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Create(sampleCreds())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	creds, ok := m.Credentials(token)
	require.True(t, ok)
	assert.Equal(t, "ghp_secret", creds.Token)
	assert.Equal(t, "dev", creds.Username)
	assert.Equal(t, domain.PlatformGitHub, creds.Platform)
	assert.Equal(t, token, m.Active())
	assert.True(t, m.Authenticated(token))
}

func TestTokenIsNotStoredInPlaintext(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(sampleCreds())
	require.NoError(t, err)

	sess := m.sessions[token]
	assert.NotContains(t, sess.EncryptedToken, "ghp_secret")
}

func TestUnknownTokenIsUnauthenticated(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Authenticated("nope"))
	_, ok := m.Credentials("nope")
	assert.False(t, ok)
}

func TestUndecryptableSessionIsDropped(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(sampleCreds())
	require.NoError(t, err)

	sess := m.sessions[token]
	sess.EncryptedToken = "not-valid-ciphertext"
	m.sessions[token] = sess

	_, ok := m.Credentials(token)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
	assert.Empty(t, m.Active())
}

func TestDeleteClearsActiveSession(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Create(sampleCreds())
	require.NoError(t, err)

	assert.True(t, m.Delete(token))
	assert.False(t, m.Delete(token))
	assert.Empty(t, m.Active())
	assert.False(t, m.Authenticated(token))
}

func TestSessionsSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	m1, err := NewManager(path)
	require.NoError(t, err)
	token, err := m1.Create(sampleCreds())
	require.NoError(t, err)

	m2, err := NewManager(path)
	require.NoError(t, err)
	creds, ok := m2.Credentials(token)
	require.True(t, ok)
	assert.Equal(t, "ghp_secret", creds.Token)
	assert.Equal(t, token, m2.Active())
}
