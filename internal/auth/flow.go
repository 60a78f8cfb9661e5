// Package auth implements the Google OAuth flow as an explicit state
// machine. Only a token source leaks out of it; the rest of the system
// never sees credentials.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ScopeWebmasters is the sole scope the application requests.
const ScopeWebmasters = "https://www.googleapis.com/auth/webmasters"

// GoogleEndpoint holds Google's OAuth endpoints.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://accounts.google.com/o/oauth2/token",
}

// Stage is a session's position in the authentication machine.
type Stage int

const (
	// StageAnonymous is a session with no authentication attempt yet.
	StageAnonymous Stage = iota
	// StagePending has an auth URL issued and awaits the callback.
	StagePending
	// StageAuthorized holds a usable token.
	StageAuthorized
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageAuthorized:
		return "authorized"
	default:
		return "anonymous"
	}
}

// ValidTransition reports whether the machine may move from one stage
// to another. Logout (any stage back to anonymous) is always allowed.
func ValidTransition(from, to Stage) bool {
	switch to {
	case StageAnonymous:
		return true
	case StagePending:
		return from == StageAnonymous || from == StagePending
	case StageAuthorized:
		return from == StagePending
	default:
		return false
	}
}

// ErrStateMismatch is returned when the callback's state parameter does
// not match the one issued with the auth URL.
var ErrStateMismatch = errors.New("oauth state parameter mismatch")

// Flow wraps an oauth2.Config for the webmasters scope.
type Flow struct {
	cfg *oauth2.Config
}

// NewFlow builds a Flow against Google's endpoints.
func NewFlow(clientID, clientSecret, redirectURL string) *Flow {
	return &Flow{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{ScopeWebmasters},
		Endpoint:     GoogleEndpoint,
	}}
}

// NewFlowWithEndpoint is NewFlow with a custom endpoint, for tests.
func NewFlowWithEndpoint(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint) *Flow {
	f := NewFlow(clientID, clientSecret, redirectURL)
	f.cfg.Endpoint = endpoint
	return f
}

// Begin issues a CSRF state value and the consent URL to redirect the
// user to. Offline access with a forced consent prompt guarantees a
// refresh token on first exchange.
func (f *Flow) Begin() (authURL, state string, err error) {
	state, err = randomState()
	if err != nil {
		return "", "", fmt.Errorf("generate oauth state: %w", err)
	}
	authURL = f.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return authURL, state, nil
}

// Exchange validates the callback state and trades the code for a token.
func (f *Flow) Exchange(ctx context.Context, issuedState, callbackState, code string) (*oauth2.Token, error) {
	if issuedState == "" || callbackState != issuedState {
		return nil, ErrStateMismatch
	}
	tok, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// TokenSource returns a self-refreshing token source for the token.
func (f *Flow) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return f.cfg.TokenSource(ctx, tok)
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
