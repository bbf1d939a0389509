// Package session holds the credential context created at sign-in.
//
// Operations against the backend always receive an explicit *Session;
// there is no ambient or global credential state. Ending the session
// zeroes the credentials, after which Valid rejects further use.
package session

import (
	"strings"
	"time"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

// Session is the signed-in connection context.
type Session struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	StartedAt time.Time
}

// New starts a session from the given connection parameters.
// Empty credentials are rejected here, before any network traffic.
func New(endpoint, accessKey, secretKey string) (*Session, error) {
	if strings.TrimSpace(accessKey) == "" || strings.TrimSpace(secretKey) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "access key and secret key are required")
	}

	return &Session{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		StartedAt: time.Now(),
	}, nil
}

// Valid reports whether the session can still authorise operations.
func (s *Session) Valid() error {
	if s == nil {
		return errs.New(errs.ErrKindInvalidInput, "not signed in")
	}
	if s.AccessKey == "" || s.SecretKey == "" {
		return errs.New(errs.ErrKindInvalidInput, "session has no credentials")
	}
	return nil
}

// End zeroes the credentials. The session cannot be reused afterwards.
func (s *Session) End() {
	if s == nil {
		return
	}
	s.AccessKey = ""
	s.SecretKey = ""
}

// StorageConfig bridges the session into a driver configuration.
func (s *Session) StorageConfig(provider storage.Provider, defaultBucket string) *storage.Config {
	return &storage.Config{
		Provider:      provider,
		Endpoint:      s.Endpoint,
		AccessKey:     s.AccessKey,
		SecretKey:     s.SecretKey,
		UseSSL:        s.UseSSL,
		Region:        s.Region,
		DefaultBucket: defaultBucket,
	}
}
