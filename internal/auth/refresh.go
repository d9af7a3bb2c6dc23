package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/zjrosen/claudecode/internal/log"
)

const (
	// DefaultTokenURL is the OAuth token endpoint.
	DefaultTokenURL = "https://console.anthropic.com/v1/oauth/token"
	// DefaultClientID is the CLI's public OAuth client id.
	DefaultClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	defaultHTTPTimeout = 30 * time.Second
)

// ErrRefreshUnsupported is returned on macOS, where the CLI keeps its
// credentials in the keychain rather than the credentials file.
var ErrRefreshUnsupported = errors.New("token refresh not supported on this platform")

// RefreshError is a non-2xx response from the token endpoint.
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Refresher exchanges the stored refresh token for a new access token and
// writes the result back to the credentials file.
type Refresher struct {
	store    *FileStore
	client   *http.Client
	tokenURL string
	clientID string
	seed     *Credentials
	goos     string
	now      func() time.Time
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.client = c
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) RefresherOption {
	return func(r *Refresher) {
		if u != "" {
			r.tokenURL = u
		}
	}
}

// WithClientID overrides the OAuth client id.
func WithClientID(id string) RefresherOption {
	return func(r *Refresher) {
		if id != "" {
			r.clientID = id
		}
	}
}

// WithSeed provides credentials written to the store when the file is
// missing, so a refresh can proceed on a fresh machine.
func WithSeed(c Credentials) RefresherOption {
	return func(r *Refresher) {
		if !c.IsZero() {
			r.seed = &c
		}
	}
}

// WithGOOS overrides platform detection.
func WithGOOS(goos string) RefresherOption {
	return func(r *Refresher) {
		r.goos = goos
	}
}

// WithClock overrides the time source used for expiresAt.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.now = now
	}
}

// NewRefresher creates a Refresher backed by store.
func NewRefresher(store *FileStore, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:    store,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		tokenURL: DefaultTokenURL,
		clientID: DefaultClientID,
		goos:     runtime.GOOS,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	RefreshToken string `json:"refresh_token"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh renews the stored credentials.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.goos == "darwin" {
		log.Info(log.CatAuth, "macOS detected, skipping token refresh")
		return ErrRefreshUnsupported
	}

	creds, err := r.current()
	if err != nil {
		return err
	}
	if creds.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	fresh, err := r.exchange(ctx, creds.RefreshToken)
	if err != nil {
		return err
	}
	if err := r.store.Save(fresh); err != nil {
		return fmt.Errorf("save refreshed credentials: %w", err)
	}
	log.Info(log.CatAuth, "token refreshed", "expires_at", time.UnixMilli(fresh.ExpiresAt).Format(time.RFC3339))
	return nil
}

// current loads the stored credentials, seeding the file first if needed.
func (r *Refresher) current() (Credentials, error) {
	creds, err := r.store.Load()
	if errors.Is(err, ErrNoCredentials) && r.seed != nil {
		log.Info(log.CatAuth, "credentials file missing, writing seed credentials", "path", r.store.Path())
		if err := r.store.Save(*r.seed); err != nil {
			return Credentials{}, err
		}
		return *r.seed, nil
	}
	return creds, err
}

func (r *Refresher) exchange(ctx context.Context, refreshToken string) (Credentials, error) {
	body, err := json.Marshal(tokenRequest{
		ClientID:     r.clientID,
		RefreshToken: refreshToken,
		GrantType:    "refresh_token",
	})
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credentials{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Credentials{}, &RefreshError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(payload))}
	}

	var tok tokenResponse
	if err := json.Unmarshal(payload, &tok); err != nil {
		return Credentials{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return Credentials{}, errors.New("token response has no access_token")
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}

	return Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    r.now().UnixMilli() + tok.ExpiresIn*1000,
	}, nil
}
