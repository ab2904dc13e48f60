package errs

import "fmt"

// ProviderErrorKind classifies an AI provider failure more precisely than
// the coarse Class taxonomy alone, so AgentNode can decide whether a retry
// is worth attempting without inspecting provider-specific error strings.
type ProviderErrorKind string

const (
	// ProviderAuth indicates authentication or authorization failed against
	// the provider. Never retryable without changing credentials.
	ProviderAuth ProviderErrorKind = "auth"
	// ProviderInvalidRequest indicates the request itself was rejected by
	// the provider (bad model name, malformed payload). Not retryable
	// without changing the request.
	ProviderInvalidRequest ProviderErrorKind = "invalid_request"
	// ProviderRateLimited indicates the provider is throttling requests.
	// Retryable after backoff.
	ProviderRateLimited ProviderErrorKind = "rate_limited"
	// ProviderUnavailable indicates a transient provider-side failure (5xx,
	// network error). Retryable.
	ProviderUnavailable ProviderErrorKind = "unavailable"
	// ProviderUnknown indicates an unclassified provider failure.
	ProviderUnknown ProviderErrorKind = "unknown"
)

// Classified is another name for Error. ProviderError embeds it under this
// name because an embedded field named Error would collide with
// ProviderError's own Error method.
type Classified = Error

// ProviderError describes a failure returned by an AgentNode's model
// provider. It always carries an *Error so it classifies into the Transient
// vs terminal split the scheduler understands, while preserving the
// provider-specific detail a caller may want to log or surface to a user.
type ProviderError struct {
	*Classified
	Provider  string
	Operation string
	Kind      ProviderErrorKind
	Code      string
	RequestID string
}

// NewProviderError constructs a ProviderError. Provider and Kind are
// required; the resulting Class is Transient for Kind values that retrying
// may resolve (rate_limited, unavailable) and Processing otherwise.
func NewProviderError(provider, operation string, kind ProviderErrorKind, code, message, requestID string, cause error) *ProviderError {
	if provider == "" {
		panic("errs: provider is required")
	}
	if kind == "" {
		panic("errs: provider error kind is required")
	}
	class := Processing
	var transientKind TransientKind
	if kind == ProviderRateLimited || kind == ProviderUnavailable {
		class = Transient
		transientKind = Transport
	}
	base := Wrap(class, message, cause)
	base.Transient = transientKind
	base.Server = provider
	return &ProviderError{
		Classified: base,
		Provider:  provider,
		Operation: operation,
		Kind:      kind,
		Code:      code,
		RequestID: requestID,
	}
}

// Error implements the error interface, formatting provider context ahead
// of the underlying classified message.
func (e *ProviderError) Error() string {
	op := e.Operation
	if op == "" {
		op = "request"
	}
	code := ""
	if e.Code != "" {
		code = e.Code + ": "
	}
	return fmt.Sprintf("%s %s (%s): %s%s", e.Provider, e.Kind, op, code, e.Classified.Error())
}

// Unwrap exposes the embedded *Error so errors.As(err, *Error) and
// errors.As(err, *ProviderError) both succeed on the same value.
func (e *ProviderError) Unwrap() error { return e.Classified }
