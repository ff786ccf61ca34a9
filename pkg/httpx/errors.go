package httpx

import (
	"errors"
	"net/http"
)

// Kind classifies a gateway failure for status mapping.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindUpstream
	KindInternal
)

// Err is a classified gateway error. Details carries per-field validation
// messages and is only serialized for KindValidation.
type Err struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

func (e *Err) Error() string { return e.Message }

func (e *Err) Unwrap() error { return e.cause }

func ValidationErr(details map[string]string) *Err {
	return &Err{Kind: KindValidation, Message: "Validation failed", Details: details}
}

func AuthenticationErr(msg string) *Err {
	return &Err{Kind: KindAuthentication, Message: msg}
}

func AuthorizationErr(msg string) *Err {
	return &Err{Kind: KindAuthorization, Message: msg}
}

func NotFoundErr(msg string) *Err {
	return &Err{Kind: KindNotFound, Message: msg}
}

func UpstreamErr(msg string, cause error) *Err {
	return &Err{Kind: KindUpstream, Message: msg, cause: cause}
}

func statusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteErr renders err as the JSON error body and returns the status it
// wrote. Upstream and internal failures get a generic client message; the
// real cause is for logs only.
func WriteErr(w http.ResponseWriter, err error) int {
	var ge *Err
	if !errors.As(err, &ge) {
		ge = &Err{Kind: KindInternal, Message: "Internal server error", cause: err}
	}
	status := statusFor(ge.Kind)
	switch ge.Kind {
	case KindValidation:
		WriteJSON(w, status, map[string]interface{}{"error": ge.Message, "details": ge.Details})
	case KindUpstream, KindInternal:
		Error(w, status, "Internal server error")
	default:
		Error(w, status, ge.Message)
	}
	return status
}
