// Package session keeps authenticated git sessions. Access tokens are
// encrypted at rest; everything else about credential storage is outside the
// engine and only the reauthentication contract leaks out.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/pkg/filesystem"
	"github.com/grimoiredev/grimoire/internal/ports"
)

const keyEnvVar = "GRIMOIRE_ENCRYPTION_KEY"

// Manager stores sessions in memory, mirrored to a state file so CLI
// invocations share the active session. Decryption failure invalidates the
// session rather than surfacing garbage credentials.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	active   string
	key      []byte
	path     string
	now      func() time.Time
}

// NewManager builds a manager persisting under ~/.grimoire/session.json. The
// encryption key comes from GRIMOIRE_ENCRYPTION_KEY (base64, 32 bytes) or a
// generated key file next to the state file.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		path = filepath.Join(filesystem.UserHomeDir(), ".grimoire", "session.json")
	}
	key, err := loadKey(filepath.Join(filepath.Dir(path), "session.key"))
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	m := &Manager{
		sessions: make(map[string]domain.Session),
		key:      key,
		path:     path,
		now:      time.Now,
	}
	m.load()
	return m, nil
}

// Create encrypts the access token and stores a new session, making it the
// active one.
func (m *Manager) Create(creds domain.Credentials) (string, error) {
	encrypted, err := m.encrypt(creds.Token)
	if err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	now := m.now()
	m.sessions[id] = domain.Session{
		ID:             id,
		Platform:       creds.Platform,
		Username:       creds.Username,
		EncryptedToken: encrypted,
		ServerURL:      creds.ServerURL,
		CreatedAt:      now,
		LastAccessed:   now,
	}
	m.active = id
	m.persist()
	return id, nil
}

// Credentials returns the decrypted credentials for token. A session whose
// token no longer decrypts is dropped.
func (m *Manager) Credentials(token string) (domain.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return domain.Credentials{}, false
	}

	decrypted, err := m.decrypt(sess.EncryptedToken)
	if err != nil {
		delete(m.sessions, token)
		if m.active == token {
			m.active = ""
		}
		m.persist()
		return domain.Credentials{}, false
	}

	sess.LastAccessed = m.now()
	m.sessions[token] = sess
	return domain.Credentials{
		Platform:  sess.Platform,
		Username:  sess.Username,
		Token:     decrypted,
		ServerURL: sess.ServerURL,
		CreatedAt: sess.CreatedAt,
	}, true
}

// Authenticated reports whether token names a valid session.
func (m *Manager) Authenticated(token string) bool {
	_, ok := m.Credentials(token)
	return ok
}

// Delete removes a session.
func (m *Manager) Delete(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return false
	}
	delete(m.sessions, token)
	if m.active == token {
		m.active = ""
	}
	m.persist()
	return true
}

// Active returns the current session token, or empty when logged out.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Count reports the number of stored sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (m *Manager) decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

type stateFile struct {
	Active   string           `json:"active"`
	Sessions []domain.Session `json:"sessions"`
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return
	}
	for _, sess := range state.Sessions {
		m.sessions[sess.ID] = sess
	}
	if _, ok := m.sessions[state.Active]; ok {
		m.active = state.Active
	}
}

func (m *Manager) persist() {
	if m.path == "" {
		return
	}
	state := stateFile{Active: m.active}
	for _, sess := range m.sessions {
		state.Sessions = append(state.Sessions, sess)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(m.path, data, 0o600)
}

func loadKey(keyPath string) ([]byte, error) {
	if encoded := os.Getenv(keyEnvVar); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyEnvVar, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("%s must be 32 bytes, got %d", keyEnvVar, len(key))
		}
		return key, nil
	}

	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err == nil && len(key) == 32 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, []byte(base64.StdEncoding.EncodeToString(key)), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

var _ ports.SessionStore = (*Manager)(nil)
