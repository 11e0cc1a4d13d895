package errx

import (
	"fmt"
	"net/http"
)

// ErrorType classifies errors for handling and HTTP mapping
type ErrorType string

const (
	TypeValidation     ErrorType = "VALIDATION"
	TypeAuthentication ErrorType = "AUTHENTICATION"
	TypeAuthorization  ErrorType = "AUTHORIZATION"
	TypeNotFound       ErrorType = "NOT_FOUND"
	TypeConflict       ErrorType = "CONFLICT"
	TypeRateLimit      ErrorType = "RATE_LIMIT"
	TypeBusiness       ErrorType = "BUSINESS"
	TypeExternal       ErrorType = "EXTERNAL"
	TypeInternal       ErrorType = "INTERNAL"
)

// defaultStatus maps a type to its HTTP status when none is registered
func defaultStatus(t ErrorType) int {
	switch t {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeAuthentication:
		return http.StatusUnauthorized
	case TypeAuthorization:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the application error carried through every layer
type Error struct {
	Type       ErrorType
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value pair for the API response and logs
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an error with the default status for its type
func New(message string, errType ErrorType) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		HTTPStatus: defaultStatus(errType),
	}
}

// Wrap wraps an underlying error with a message and type
func Wrap(err error, message string, errType ErrorType) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		HTTPStatus: defaultStatus(errType),
		Err:        err,
	}
}

// definition is a registered error template
type definition struct {
	errType ErrorType
	status  int
	message string
}

// Registry holds a domain's error codes under a common prefix
type Registry struct {
	prefix      string
	definitions map[string]definition
}

// NewRegistry creates a registry for a domain prefix (e.g. "CHAT")
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:      prefix,
		definitions: make(map[string]definition),
	}
}

// Register adds an error definition and returns its full code
func (r *Registry) Register(code string, errType ErrorType, httpStatus int, message string) string {
	full := r.prefix + "_" + code
	r.definitions[full] = definition{
		errType: errType,
		status:  httpStatus,
		message: message,
	}
	return full
}

// New builds an error from a registered code
func (r *Registry) New(code string) *Error {
	def, ok := r.definitions[code]
	if !ok {
		return &Error{
			Type:       TypeInternal,
			Code:       code,
			Message:    "unregistered error code",
			HTTPStatus: http.StatusInternalServerError,
		}
	}
	return &Error{
		Type:       def.errType,
		Code:       code,
		Message:    def.message,
		HTTPStatus: def.status,
	}
}

// NewWithCause builds a registered error wrapping an underlying cause
func (r *Registry) NewWithCause(code string, err error) *Error {
	e := r.New(code)
	e.Err = err
	return e
}

// IsType reports whether err is an *Error of the given type
func IsType(err error, errType ErrorType) bool {
	e, ok := err.(*Error)
	return ok && e.Type == errType
}
