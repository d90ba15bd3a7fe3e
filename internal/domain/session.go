package domain

import "time"

// Credentials are the decrypted git credentials attached to a session.
type Credentials struct {
	Platform  Platform
	Username  string
	Token     string
	ServerURL string
	CreatedAt time.Time
}

// Session is an authenticated git session. The access token is held encrypted
// at rest; only the session store can decrypt it.
type Session struct {
	ID             string
	Platform       Platform
	Username       string
	EncryptedToken string
	ServerURL      string
	CreatedAt      time.Time
	LastAccessed   time.Time
}
