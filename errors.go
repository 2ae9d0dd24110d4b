package authcore

import (
	"errors"
	"fmt"
	"net/http"
)

// Category groups error codes by the status class the transport renders.
type Category uint8

// Categories, each rendered as one HTTP status class.
const (
	CategoryInternal Category = iota
	CategoryBadRequest
	CategoryAuthentication
	CategoryForbidden
	CategoryNotFound
	CategoryConflict
	CategoryTooManyRequests
)

// Status returns the HTTP status of the category.
func (c Category) Status() int {
	switch c {
	case CategoryBadRequest:
		return http.StatusBadRequest
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryForbidden:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryBadRequest:
		return "bad_request"
	case CategoryAuthentication:
		return "authentication"
	case CategoryForbidden:
		return "forbidden"
	case CategoryNotFound:
		return "not_found"
	case CategoryConflict:
		return "conflict"
	case CategoryTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Code identifies one failure kind of the closed taxonomy.
type Code string

// Codes of the closed taxonomy.
const (
	CodeValidation                   Code = "VALIDATION_ERROR"
	CodeMissingOAuthQueryParameter   Code = "MISSING_OAUTH_QUERY_PARAMETER"
	CodeUnknownOAuthProvider         Code = "UNKNOWN_OAUTH_PROVIDER"
	CodeInvalidOAuthCallbackState    Code = "INVALID_OAUTH_CALLBACK_STATE"
	CodeOAuthStateExpired            Code = "OAUTH_STATE_EXPIRED"
	CodeInvalidOAuthCallbackCode     Code = "INVALID_OAUTH_CALLBACK_CODE"
	CodeInvalidEmailToken            Code = "INVALID_EMAIL_TOKEN"
	CodeAuthenticationRequired       Code = "AUTHENTICATION_REQUIRED"
	CodeWrongSignInCredentials       Code = "WRONG_SIGN_IN_CREDENTIALS"
	CodeActionForbidden              Code = "ACTION_FORBIDDEN"
	CodeOAuthAccountAlreadyConnected Code = "OAUTH_ACCOUNT_ALREADY_CONNECTED"
	CodeEarlyAccessRequired          Code = "EARLY_ACCESS_REQUIRED"
	CodeUserNotFound                 Code = "USER_NOT_FOUND"
	CodeSessionNotFound              Code = "SESSION_NOT_FOUND"
	CodeEmailAlreadyUsed             Code = "EMAIL_ALREADY_USED"
	CodeTooManyRequests              Code = "TOO_MANY_REQUESTS"
	CodeInternal                     Code = "INTERNAL_SERVER_ERROR"
	CodeInvalidToken                 Code = "INVALID_TOKEN"
	CodeNetwork                      Code = "NETWORK_ERROR"
)

var codeCategory = map[Code]Category{
	CodeValidation:                   CategoryBadRequest,
	CodeMissingOAuthQueryParameter:   CategoryBadRequest,
	CodeUnknownOAuthProvider:         CategoryBadRequest,
	CodeInvalidOAuthCallbackState:    CategoryBadRequest,
	CodeOAuthStateExpired:            CategoryBadRequest,
	CodeInvalidOAuthCallbackCode:     CategoryBadRequest,
	CodeInvalidEmailToken:            CategoryBadRequest,
	CodeAuthenticationRequired:       CategoryAuthentication,
	CodeWrongSignInCredentials:       CategoryAuthentication,
	CodeActionForbidden:              CategoryForbidden,
	CodeOAuthAccountAlreadyConnected: CategoryForbidden,
	CodeEarlyAccessRequired:          CategoryForbidden,
	CodeUserNotFound:                 CategoryNotFound,
	CodeSessionNotFound:              CategoryNotFound,
	CodeEmailAlreadyUsed:             CategoryConflict,
	CodeTooManyRequests:              CategoryTooManyRequests,
	CodeInternal:                     CategoryInternal,
	CodeInvalidToken:                 CategoryInternal,
	CodeNetwork:                      CategoryInternal,
}

// Category returns the status class of the code. Unknown codes are internal.
func (c Code) Category() Category {
	return codeCategory[c]
}

// Error is the typed failure returned by every Engine operation. Data holds
// the per-case fields (email, provider name, upstream status and body).
type Error struct {
	Code    Code
	Message string
	Data    map[string]string
	cause   error
}

// Error implements error.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so the package sentinels
// work with errors.Is regardless of per-case data.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Category returns the status class of e.
func (e *Error) Category() Category { return e.Code.Category() }

// Status returns the HTTP status of e.
func (e *Error) Status() int {
	if e.Code == CodeNetwork {
		return http.StatusBadGateway
	}
	return e.Category().Status()
}

func newError(code Code, message string, cause error, kv ...string) *Error {
	e := &Error{Code: code, Message: message, cause: cause}
	if len(kv) > 1 {
		e.Data = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Data[kv[i]] = kv[i+1]
		}
	}
	return e
}

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrValidation                   = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrMissingOAuthQueryParameter   = &Error{Code: CodeMissingOAuthQueryParameter, Message: "missing oauth query parameter"}
	ErrUnknownOAuthProvider         = &Error{Code: CodeUnknownOAuthProvider, Message: "unknown oauth provider"}
	ErrInvalidOAuthCallbackState    = &Error{Code: CodeInvalidOAuthCallbackState, Message: "invalid oauth callback state"}
	ErrOAuthStateExpired            = &Error{Code: CodeOAuthStateExpired, Message: "oauth state expired"}
	ErrInvalidOAuthCallbackCode     = &Error{Code: CodeInvalidOAuthCallbackCode, Message: "invalid oauth callback code"}
	ErrInvalidEmailToken            = &Error{Code: CodeInvalidEmailToken, Message: "invalid or expired email token"}
	ErrAuthenticationRequired       = &Error{Code: CodeAuthenticationRequired, Message: "authentication required"}
	ErrWrongSignInCredentials       = &Error{Code: CodeWrongSignInCredentials, Message: "wrong email or password"}
	ErrActionForbidden              = &Error{Code: CodeActionForbidden, Message: "action forbidden"}
	ErrOAuthAccountAlreadyConnected = &Error{Code: CodeOAuthAccountAlreadyConnected, Message: "oauth account already connected to another user"}
	ErrEarlyAccessRequired          = &Error{Code: CodeEarlyAccessRequired, Message: "early access required"}
	ErrUserNotFound                 = &Error{Code: CodeUserNotFound, Message: "user not found"}
	ErrSessionNotFound              = &Error{Code: CodeSessionNotFound, Message: "session not found"}
	ErrEmailAlreadyUsed             = &Error{Code: CodeEmailAlreadyUsed, Message: "email already used"}
	ErrTooManyRequests              = &Error{Code: CodeTooManyRequests, Message: "too many requests"}
	ErrInternal                     = &Error{Code: CodeInternal, Message: "internal server error"}
	ErrInvalidToken                 = &Error{Code: CodeInvalidToken, Message: "invalid token"}
	ErrNetwork                      = &Error{Code: CodeNetwork, Message: "upstream provider unavailable"}
)

// ValidationError reports invalid input on field.
func ValidationError(field, reason string) *Error {
	return newError(CodeValidation, reason, nil, "field", field)
}

// MissingOAuthQueryParameter reports a required OAuth parameter that was absent.
func MissingOAuthQueryParameter(name string) *Error {
	return newError(CodeMissingOAuthQueryParameter, "missing oauth query parameter "+name, nil, "name", name)
}

// UnknownOAuthProvider reports a provider name with no configured client.
func UnknownOAuthProvider(name string) *Error {
	return newError(CodeUnknownOAuthProvider, "unknown oauth provider", nil, "name", name)
}

// InvalidOAuthCallbackState reports a state that was never issued or does not
// match the callback.
func InvalidOAuthCallbackState() *Error {
	return newError(CodeInvalidOAuthCallbackState, ErrInvalidOAuthCallbackState.Message, nil)
}

// OAuthStateExpired reports an issued state whose record is gone.
func OAuthStateExpired() *Error {
	return newError(CodeOAuthStateExpired, ErrOAuthStateExpired.Message, nil)
}

// InvalidOAuthCallbackCode carries the provider's status and response body.
func InvalidOAuthCallbackCode(status int, body string) *Error {
	return newError(CodeInvalidOAuthCallbackCode, ErrInvalidOAuthCallbackCode.Message, nil,
		"status", fmt.Sprint(status), "body", body)
}

// InvalidEmailToken reports an unknown, expired or mismatched purpose token.
func InvalidEmailToken() *Error {
	return newError(CodeInvalidEmailToken, ErrInvalidEmailToken.Message, nil)
}

// AuthenticationRequired reports a request without a resolved user.
func AuthenticationRequired() *Error {
	return newError(CodeAuthenticationRequired, ErrAuthenticationRequired.Message, nil)
}

// WrongSignInCredentials never says which check failed.
func WrongSignInCredentials(email string) *Error {
	return newError(CodeWrongSignInCredentials, ErrWrongSignInCredentials.Message, nil, "email", email)
}

// ActionForbidden reports an authenticated caller that may not do this; reason
// is the public message.
func ActionForbidden(reason string) *Error {
	return newError(CodeActionForbidden, reason, nil)
}

// OAuthAccountAlreadyConnected reports a provider identity owned by another user.
func OAuthAccountAlreadyConnected(provider string) *Error {
	return newError(CodeOAuthAccountAlreadyConnected, ErrOAuthAccountAlreadyConnected.Message, nil, "provider", provider)
}

// EarlyAccessRequired reports an email outside the early-access allowlist.
func EarlyAccessRequired(email string) *Error {
	return newError(CodeEarlyAccessRequired, ErrEarlyAccessRequired.Message, nil, "email", email)
}

// UserNotFound reports a missing user id.
func UserNotFound(id string) *Error {
	return newError(CodeUserNotFound, ErrUserNotFound.Message, nil, "id", id)
}

// SessionNotFound reports a missing session id.
func SessionNotFound(id string) *Error {
	return newError(CodeSessionNotFound, ErrSessionNotFound.Message, nil, "id", id)
}

// EmailAlreadyUsed reports a duplicate registration.
func EmailAlreadyUsed(email string) *Error {
	return newError(CodeEmailAlreadyUsed, ErrEmailAlreadyUsed.Message, nil, "email", email)
}

// TooManyRequests reports a throttled caller.
func TooManyRequests() *Error {
	return newError(CodeTooManyRequests, ErrTooManyRequests.Message, nil)
}

// InternalServerError wraps cause. The cause is never exposed to clients.
func InternalServerError(cause error) *Error {
	return newError(CodeInternal, ErrInternal.Message, cause)
}

// InvalidTokenError wraps a bearer token verification failure.
func InvalidTokenError(cause error) *Error {
	return newError(CodeInvalidToken, ErrInvalidToken.Message, cause)
}

// NetworkError wraps a failed call to an upstream provider.
func NetworkError(cause error) *Error {
	return newError(CodeNetwork, ErrNetwork.Message, cause)
}

// AsError returns the taxonomy error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode maps err to an HTTP status. Errors outside the taxonomy are 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := AsError(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns a message safe to show to clients. Internal-class
// errors collapse to their generic message.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := AsError(err)
	if !ok {
		return ErrInternal.Message
	}
	if e.Category() == CategoryInternal {
		return e.genericMessage()
	}
	return e.Message
}

func (e *Error) genericMessage() string {
	switch e.Code {
	case CodeInvalidToken:
		return ErrInvalidToken.Message
	case CodeNetwork:
		return ErrNetwork.Message
	default:
		return ErrInternal.Message
	}
}
