package drive

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"

	"watchlater/store"
)

// revokeURL is Google's OAuth token revocation endpoint.
const revokeURL = "https://oauth2.googleapis.com/revoke"

// TokenProvider obtains a fresh bearer credential, possibly by prompting the
// user, and revokes one on sign-out.
type TokenProvider interface {
	// Obtain acquires a credential. It may block on user interaction.
	Obtain(ctx context.Context) (*store.Credential, error)
	// Revoke invalidates a credential remotely.
	Revoke(ctx context.Context, token string) error
}

// AuthSession holds sign-in state for the remote store. Credentials are
// persisted through the local store (value plus expiry) so a later start can
// skip re-prompting; expiry is checked eagerly on every read and an expired
// credential is treated identically to no credential.
//
// A session is an explicit object with a lifecycle (created on app start,
// reset on sign-out) rather than process-wide state, so independent
// instances can coexist in tests.
type AuthSession struct {
	store    store.Store
	provider TokenProvider
}

// NewAuthSession creates an auth session. It fails fast when no token
// provider is available, mirroring a missing identity SDK.
func NewAuthSession(st store.Store, provider TokenProvider) (*AuthSession, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	return &AuthSession{store: st, provider: provider}, nil
}

// SignedIn reports whether a valid (unexpired) credential is held.
func (a *AuthSession) SignedIn(ctx context.Context) (bool, error) {
	cred, err := a.store.Credential(ctx)
	if err != nil {
		return false, err
	}
	return cred != nil, nil
}

// SignIn resolves once a credential is held. A valid cached credential is
// reused without prompting; otherwise the provider obtains a fresh one
// (which may prompt the user) and it is persisted with its expiry.
func (a *AuthSession) SignIn(ctx context.Context) error {
	cred, err := a.store.Credential(ctx)
	if err != nil {
		return err
	}
	if cred != nil {
		return nil
	}
	cred, err = a.provider.Obtain(ctx)
	if err != nil {
		return &AuthError{Op: "sign in", Err: err}
	}
	return a.store.SetCredential(ctx, *cred)
}

// SignOut revokes the credential remotely and clears local state. A failed
// remote revocation still clears local state.
func (a *AuthSession) SignOut(ctx context.Context) error {
	cred, err := a.store.Credential(ctx)
	if err != nil {
		return err
	}
	if cred != nil {
		if err := a.provider.Revoke(ctx, cred.Token); err != nil {
			log.Printf("drive: token revocation failed: %v", err)
		}
	}
	return a.store.ClearCredential(ctx)
}

// Token returns the current bearer token, or an AuthError wrapping
// ErrNotSignedIn when no valid credential is held.
func (a *AuthSession) Token(ctx context.Context) (string, error) {
	cred, err := a.store.Credential(ctx)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", &AuthError{Op: "token", Err: ErrNotSignedIn}
	}
	return cred.Token, nil
}

// TokenSource adapts the session's stored credential for the Drive service.
func (a *AuthSession) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, session: a}
}

type sessionTokenSource struct {
	ctx     context.Context
	session *AuthSession
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	cred, err := s.session.store.Credential(s.ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, &AuthError{Op: "token", Err: ErrNotSignedIn}
	}
	return &oauth2.Token{
		AccessToken: cred.Token,
		Expiry:      cred.ExpiresAt,
	}, nil
}

// OAuthProvider implements TokenProvider with Google's OAuth endpoint and an
// out-of-band authorization-code exchange suitable for a CLI.
type OAuthProvider struct {
	config oauth2.Config
	// PromptCode presents the authorization URL to the user and returns the
	// code they obtained.
	PromptCode func(authURL string) (string, error)
	// HTTPClient is used for revocation. Nil selects http.DefaultClient.
	HTTPClient *http.Client
}

// NewOAuthProvider creates an OAuth token provider for the given client id.
// It fails fast when the client id is missing.
func NewOAuthProvider(clientID, clientSecret string, promptCode func(string) (string, error)) (*OAuthProvider, error) {
	if clientID == "" {
		return nil, ErrNoClientID
	}
	return &OAuthProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{gdrive.DriveAppdataScope},
		},
		PromptCode: promptCode,
	}, nil
}

// Obtain runs the authorization-code flow and returns the resulting
// credential with its expiry.
func (p *OAuthProvider) Obtain(ctx context.Context) (*store.Credential, error) {
	if p.PromptCode == nil {
		return nil, ErrNoProvider
	}
	authURL := p.config.AuthCodeURL("state", oauth2.AccessTypeOffline)
	code, err := p.PromptCode(authURL)
	if err != nil {
		return nil, fmt.Errorf("authorization prompt: %w", err)
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return &store.Credential{Token: token.AccessToken, ExpiresAt: expiry}, nil
}

// Revoke invalidates the token at Google's revocation endpoint.
func (p *OAuthProvider) Revoke(ctx context.Context, token string) error {
	body := url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "revocation rejected"}
	}
	return nil
}
