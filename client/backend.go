package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lborres/tether/core"
)

// Backend is the remote auth service.
type Backend interface {
	SignUp(ctx context.Context, input core.SignUpInput) (*core.AuthResult, error)
	SignIn(ctx context.Context, input core.SignInInput) (*core.AuthResult, error)
	SignInWithGoogle(ctx context.Context, idToken string) (*core.AuthResult, error)
	SignInWithApple(ctx context.Context, input core.AppleSignInInput) (*core.AuthResult, error)
	Me(ctx context.Context, token string) (*core.Profile, error)
	SignOut(ctx context.Context, token string) error
}

// Any core.AuthHandler, such as an in-process services.AuthService, is a Backend.
var _ Backend = (core.AuthHandler)(nil)

var _ Backend = (*HTTPBackend)(nil)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response. It unwraps to the core sentinel named by Code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth service: status %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	if err, ok := core.ErrorForKind(e.Code); ok {
		return err
	}
	return nil
}

// HTTPBackend talks to the JSON API served by adapters/fiber.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend targets baseURL, e.g. "https://example.com/api/auth".
// A nil client gets a 10s timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (b *HTTPBackend) SignUp(ctx context.Context, input core.SignUpInput) (*core.AuthResult, error) {
	var out core.AuthResult
	if err := b.do(ctx, http.MethodPost, "/sign-up", "", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBackend) SignIn(ctx context.Context, input core.SignInInput) (*core.AuthResult, error) {
	var out core.AuthResult
	if err := b.do(ctx, http.MethodPost, "/sign-in", "", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBackend) SignInWithGoogle(ctx context.Context, idToken string) (*core.AuthResult, error) {
	var out core.AuthResult
	if err := b.do(ctx, http.MethodPost, "/sign-in/google", "", core.GoogleSignInInput{IDToken: idToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *HTTPBackend) SignInWithApple(ctx context.Context, input core.AppleSignInInput) (*core.AuthResult, error) {
	var out core.AuthResult
	if err := b.do(ctx, http.MethodPost, "/sign-in/apple", "", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns nil when the server answers null.
func (b *HTTPBackend) Me(ctx context.Context, token string) (*core.Profile, error) {
	var out *core.Profile
	if err := b.do(ctx, http.MethodGet, "/me", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *HTTPBackend) SignOut(ctx context.Context, token string) error {
	return b.do(ctx, http.MethodPost, "/sign-out", token, nil, nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("auth service: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload core.ErrorResponse
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("auth service: decode response: %w", err)
	}
	return nil
}
