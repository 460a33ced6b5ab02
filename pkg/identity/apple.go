package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/metrics"
)

const AppleIssuer = "https://appleid.apple.com"

type AppleConfig struct {
	// Audiences lists accepted client IDs. An empty list accepts no token.
	Audiences  []string
	KeysURL    string
	KeysTTL    time.Duration
	HTTPClient *http.Client
	Timeout    time.Duration
	Now        func() time.Time
	Metrics    metrics.Recorder
}

// AppleVerifier checks Sign in with Apple identity tokens.
type AppleVerifier struct {
	audiences []string
	keys      *KeySet
	now       func() time.Time
}

var _ Verifier = (*AppleVerifier)(nil)

func NewAppleVerifier(cfg AppleConfig) *AppleVerifier {
	if cfg.KeysURL == "" {
		cfg.KeysURL = DefaultAppleKeysURL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := httpClient(cfg.HTTPClient, cfg.Timeout)

	return &AppleVerifier{
		audiences: cfg.Audiences,
		keys:      newKeySet(cfg.KeysURL, client, cfg.KeysTTL, cfg.Now, core.ProviderApple.String(), cfg.Metrics),
		now:       cfg.Now,
	}
}

func (v *AppleVerifier) Provider() core.Provider {
	return core.ProviderApple
}

type appleClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verify runs the checks in a fixed order: structure, issuer, expiry, key
// lookup, signature, audience. Expired tokens never reach the network.
func (v *AppleVerifier) Verify(ctx context.Context, a core.Assertion) (*core.Identity, error) {
	raw := strings.TrimSpace(a.Token)
	if raw == "" {
		return nil, core.ErrTokenRequired
	}
	if strings.Count(raw, ".") != 2 {
		return nil, fmt.Errorf("%w: apple: malformed token", core.ErrInvalidToken)
	}

	var unverified appleClaims
	token, _, err := jwt.NewParser().ParseUnverified(raw, &unverified)
	if err != nil {
		return nil, fmt.Errorf("%w: apple: %w", core.ErrInvalidToken, err)
	}

	if unverified.Issuer != AppleIssuer {
		return nil, core.ErrInvalidIssuer
	}

	if unverified.ExpiresAt == nil || !unverified.ExpiresAt.Time.After(v.now()) {
		return nil, core.ErrTokenExpired
	}

	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: apple: token has no kid", core.ErrKeyNotFound)
	}

	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		return nil, err
	}

	var claims appleClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: apple: bad signature", core.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: apple: %w", core.ErrInvalidToken, err)
	}

	if !audienceAccepted(claims.Audience, v.audiences) {
		return nil, fmt.Errorf("%w: apple: audience not accepted", core.ErrInvalidToken)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: apple: missing subject", core.ErrInvalidToken)
	}

	// Apple never puts the user's name in the token; the client forwards it
	// on first consent.
	return &core.Identity{
		Provider:  core.ProviderApple,
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Name:      strings.TrimSpace(a.Name),
	}, nil
}
