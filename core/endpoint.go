package core

// Operation IDs shared by the endpoint registry, HTTP adapters and clients.
const (
	OpSignUp           = "signUpWithEmailAndPassword"
	OpSignIn           = "signInWithEmailAndPassword"
	OpSignInWithGoogle = "signInWithGoogle"
	OpSignInWithApple  = "signInWithApple"
	OpMe               = "getCurrentUser"
	OpSignOut          = "signOut"
	OpAppleCallback    = "appleFormCallback"
)

// EndpointProvider provides a list of endpoints to register dynamically
type EndpointProvider interface {
	GetEndpoints() []Endpoint
}

// Endpoint is a framework-agnostic route template. Adapters attach their
// own handler by OperationID.
type Endpoint struct {
	Path     string
	Method   string
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	// Protected endpoints read the session token from the request.
	Protected bool
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
