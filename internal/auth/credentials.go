// Package auth maintains the claude CLI's OAuth credentials file and
// refreshes its access token when the CLI reports an auth failure.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/claudecode/internal/log"
)

var (
	// ErrNoCredentials means the credentials file does not exist.
	ErrNoCredentials = errors.New("credentials file not found")
	// ErrNoRefreshToken means the file has no claudeAiOauth.refreshToken.
	ErrNoRefreshToken = errors.New("no refresh token in credentials")
)

// DefaultScopes are written with every credential set.
var DefaultScopes = []string{"user:inference", "user:profile"}

// oauthKey is the top-level key the CLI reads its OAuth block from.
const oauthKey = "claudeAiOauth"

// Credentials is the OAuth block of the credentials file.
type Credentials struct {
	AccessToken  string `json:"accessToken" mapstructure:"access_token" yaml:"access_token"`
	RefreshToken string `json:"refreshToken" mapstructure:"refresh_token" yaml:"refresh_token"`
	// ExpiresAt is a Unix timestamp in milliseconds.
	ExpiresAt int64    `json:"expiresAt" mapstructure:"expires_at" yaml:"expires_at"`
	Scopes    []string `json:"scopes,omitempty" mapstructure:"-" yaml:"-"`
}

// IsZero reports whether no token is set.
func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Expired reports whether the access token has expired at now.
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && now.UnixMilli() >= c.ExpiresAt
}

// DefaultCredentialsPath is ~/.claude/.credentials.json.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claude", ".credentials.json"), nil
}

// FileStore reads and writes the credentials file, keeping any top-level
// keys it does not manage.
type FileStore struct {
	path string
}

// NewFileStore creates a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the OAuth block. ErrNoCredentials when the file is missing.
func (s *FileStore) Load() (Credentials, error) {
	doc, err := s.read()
	if err != nil {
		return Credentials{}, err
	}
	raw, ok := doc[oauthKey]
	if !ok {
		return Credentials{}, nil
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse %s in %s: %w", oauthKey, s.path, err)
	}
	return creds, nil
}

// Save writes creds as the OAuth block with DefaultScopes. The directory is
// created 0700 and the file written 0600 through a temp file and rename.
func (s *FileStore) Save(creds Credentials) error {
	doc, err := s.read()
	if errors.Is(err, ErrNoCredentials) {
		doc = map[string]json.RawMessage{}
	} else if err != nil {
		return err
	}

	creds.Scopes = DefaultScopes
	block, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	doc[oauthKey] = block

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("create temp credentials: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp credentials: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}

	log.Info(log.CatAuth, "credentials written", "path", s.path, "expires_at", creds.ExpiresAt)
	return nil
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}
