package fiber

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/logger"
	"github.com/lborres/tether/pkg/metrics"
	"github.com/lborres/tether/services"
)

// Default targets of the Apple form callback redirect.
const (
	DefaultAppleSuccessURL = "/auth/callback"
	DefaultAppleFailureURL = "/login"
)

type Adapter struct {
	app      *fiber.App
	registry *services.EndpointRegistry
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	appleSuccessURL string
	appleFailureURL string
}

var _ core.HTTPAdapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithRegistry replaces the default endpoint table.
func WithRegistry(r *services.EndpointRegistry) Option {
	return func(a *Adapter) { a.registry = r }
}

// WithMetrics exposes gatherer at GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(a *Adapter) { a.gatherer = g }
}

// WithAppleRedirects sets where the Apple form callback sends the browser.
// success receives token and provider query parameters, failure an error
// code. Empty values keep the defaults.
func WithAppleRedirects(success, failure string) Option {
	return func(a *Adapter) {
		if success != "" {
			a.appleSuccessURL = success
		}
		if failure != "" {
			a.appleFailureURL = failure
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(app *fiber.App, opts ...Option) *Adapter {
	a := &Adapter{
		app:      app,
		registry: services.NewEndpointRegistry(),
		logger:   logger.Discard(),

		appleSuccessURL: DefaultAppleSuccessURL,
		appleFailureURL: DefaultAppleFailureURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes mounts every registry endpoint under basePath. Endpoints
// whose operation has no handler here are rejected.
func (a *Adapter) RegisterRoutes(handler core.AuthHandler, basePath string) error {
	if basePath == "" {
		basePath = core.DefaultBasePath
	}
	handlers := a.handlers(handler)
	api := a.app.Group(basePath)

	for _, ep := range a.registry.Endpoints() {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}
		switch strings.ToUpper(ep.Method) {
		case http.MethodGet:
			api.Get(ep.Path, h)
		case http.MethodPost:
			api.Post(ep.Path, h)
		case http.MethodPut:
			api.Put(ep.Path, h)
		case http.MethodDelete:
			api.Delete(ep.Path, h)
		default:
			return fmt.Errorf("unsupported method %s for %s", ep.Method, ep.Path)
		}
		a.logger.Debug("route registered",
			slog.String("method", ep.Method),
			slog.String("path", basePath+ep.Path),
			logger.Operation(ep.Metadata.OperationID))
	}

	if a.gatherer != nil {
		a.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(a.gatherer)))
	}
	return nil
}

func (a *Adapter) handlers(h core.AuthHandler) map[string]fiber.Handler {
	return map[string]fiber.Handler{
		core.OpSignUp:           a.handleSignUp(h),
		core.OpSignIn:           a.handleSignIn(h),
		core.OpSignInWithGoogle: a.handleSignInWithGoogle(h),
		core.OpSignInWithApple:  a.handleSignInWithApple(h),
		core.OpAppleCallback:    a.handleAppleCallback(h),
		core.OpMe:               a.handleMe(h),
		core.OpSignOut:          a.handleSignOut(h),
	}
}
