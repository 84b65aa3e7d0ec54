package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Kind is the stable machine-readable error class returned to API callers.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountInactive    Kind = "account_inactive"
	KindAccountUnverified  Kind = "account_unverified"
	KindNotFound           Kind = "not_found"
	KindExpired            Kind = "expired"
	KindForbidden          Kind = "forbidden"
	KindInvalidState       Kind = "invalid_state"
	KindInvalidToken       Kind = "invalid_token"
	KindThrottled          Kind = "throttled"
)

// Error carries a kind, a human message and optional field-level details.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrAccountInactive    = &Error{Kind: KindAccountInactive}
	ErrAccountUnverified  = &Error{Kind: KindAccountUnverified}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrThrottled          = &Error{Kind: KindThrottled}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Field builds a validation error for a single field.
func Field(field, msg string) *Error {
	return Validation(map[string]string{field: msg})
}

// Validation builds a validation error from field messages.
func Validation(fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return &Error{Kind: KindValidation, Message: strings.Join(parts, "; "), Fields: fields}
}

func NotFound(msg string) *Error { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error { return New(KindForbidden, msg) }
func InvalidState(msg string) *Error { return New(KindInvalidState, msg) }
func Expired(msg string) *Error { return New(KindExpired, msg) }
func InvalidToken(msg string) *Error { return New(KindInvalidToken, msg) }
func Throttled(msg string) *Error { return New(KindThrottled, msg) }
func Inactive(msg string) *Error { return New(KindAccountInactive, msg) }
func Unverified(msg string) *Error { return New(KindAccountUnverified, msg) }
func Credentials(msg string) *Error { return New(KindInvalidCredentials, msg) }

// FromValidation converts ozzo-validation errors into a field-level *Error.
// Any other error is returned untouched.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for k, v := range verrs {
			if v != nil {
				fields[k] = v.Error()
			}
		}
		return Validation(fields)
	}
	return err
}

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the response status used by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindInvalidToken:
		return http.StatusUnauthorized
	case KindAccountInactive, KindAccountUnverified, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindInvalidState:
		return http.StatusConflict
	case KindThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
