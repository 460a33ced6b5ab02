package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/lborres/tether/core"
)

const (
	GoogleIssuer         = "https://accounts.google.com"
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

type GoogleConfig struct {
	// ClientIDs lists accepted audiences. An empty list accepts no token.
	ClientIDs  []string
	JWKSURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Now        func() time.Time
}

// GoogleVerifier checks Google ID tokens against Google's published keys.
type GoogleVerifier struct {
	verifier  *oidc.IDTokenVerifier
	clientIDs []string
	client    *http.Client
}

var _ Verifier = (*GoogleVerifier)(nil)

func NewGoogleVerifier(cfg GoogleConfig) *GoogleVerifier {
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultGoogleJWKSURL
	}
	client := httpClient(cfg.HTTPClient, cfg.Timeout)

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), client), cfg.JWKSURL)
	verifier := oidc.NewVerifier(GoogleIssuer, keySet, &oidc.Config{
		SkipClientIDCheck: true,
		Now:               cfg.Now,
	})

	return &GoogleVerifier{
		verifier:  verifier,
		clientIDs: cfg.ClientIDs,
		client:    client,
	}
}

func (g *GoogleVerifier) Provider() core.Provider {
	return core.ProviderGoogle
}

type googleClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (g *GoogleVerifier) Verify(ctx context.Context, a core.Assertion) (*core.Identity, error) {
	raw := strings.TrimSpace(a.Token)
	if raw == "" {
		return nil, core.ErrTokenRequired
	}

	idToken, err := g.verifier.Verify(oidc.ClientContext(ctx, g.client), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: google: %w", core.ErrInvalidToken, err)
	}

	if !audienceAccepted(idToken.Audience, g.clientIDs) {
		return nil, fmt.Errorf("%w: google: audience not accepted", core.ErrInvalidToken)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: google: missing subject", core.ErrInvalidToken)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: google: %w", core.ErrInvalidToken, err)
	}

	return &core.Identity{
		Provider:  core.ProviderGoogle,
		SubjectID: idToken.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
	}, nil
}
