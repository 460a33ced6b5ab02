// Package identity verifies identity tokens issued to clients by Google and
// Apple. Verifiers return facts about the token holder and never touch storage.
package identity

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/metrics"
)

// DefaultHTTPTimeout bounds every request made to a provider.
const DefaultHTTPTimeout = 5 * time.Second

// Verifier is the port implemented by each provider.
type Verifier = core.IdentityVerifier

// Registry dispatches assertions to the verifier registered for a provider.
type Registry struct {
	verifiers map[core.Provider]Verifier
}

func NewRegistry(verifiers ...Verifier) *Registry {
	r := &Registry{verifiers: make(map[core.Provider]Verifier, len(verifiers))}
	for _, v := range verifiers {
		r.Register(v)
	}
	return r
}

// Register adds v, replacing any verifier already bound to the same provider.
func (r *Registry) Register(v Verifier) {
	if v == nil {
		return
	}
	r.verifiers[v.Provider()] = v
}

func (r *Registry) Get(p core.Provider) (Verifier, error) {
	v, ok := r.verifiers[p]
	if !ok {
		return nil, core.ErrUnsupportedProvider
	}
	return v, nil
}

// Verify checks the assertion with the provider's verifier.
func (r *Registry) Verify(ctx context.Context, p core.Provider, a core.Assertion) (*core.Identity, error) {
	v, err := r.Get(p)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, a)
}

// Providers lists the providers with a registered verifier.
func (r *Registry) Providers() []core.Provider {
	out := make([]core.Provider, 0, len(r.verifiers))
	for _, p := range core.Providers() {
		if _, ok := r.verifiers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

type instrumented struct {
	Verifier
	rec metrics.Recorder
}

// Instrument reports verification latency and outcome for v to rec.
func Instrument(v Verifier, rec metrics.Recorder) Verifier {
	if rec == nil {
		return v
	}
	return &instrumented{Verifier: v, rec: rec}
}

func (i *instrumented) Verify(ctx context.Context, a core.Assertion) (*core.Identity, error) {
	start := time.Now()
	id, err := i.Verifier.Verify(ctx, a)
	outcome := "ok"
	if err != nil {
		outcome = core.ErrorKind(err)
	}
	i.rec.RecordVerification(i.Provider().String(), outcome, time.Since(start))
	return id, err
}

// audienceAccepted reports whether any token audience is in accepted.
func audienceAccepted(audiences, accepted []string) bool {
	return slices.ContainsFunc(audiences, func(aud string) bool {
		return slices.Contains(accepted, aud)
	})
}

func httpClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
