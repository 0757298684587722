package hh

import "fmt"

// ErrorKind classifies a non-2xx API response.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindBadRequest
	KindForbidden
	KindNotFound
	KindTooManyRequests
	KindLimitExceeded
	KindClientError
	KindServerError
)

// String returns the human-readable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindTooManyRequests:
		return "too many requests"
	case KindLimitExceeded:
		return "limit exceeded"
	case KindClientError:
		return "client error"
	case KindServerError:
		return "server error"
	}
	return "unexpected response"
}

// APIError is a classified non-2xx response from the hh.ru API.
// Body holds the parsed JSON error payload (empty map if the body
// was empty or not valid JSON).
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Body       map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hh: %s (status %d)", e.Kind, e.StatusCode)
}

// IsLimitExceeded reports whether the payload carries the platform's
// application-cap signal: {"errors": [{"value": "limit_exceeded"}, ...]}.
// The signal can arrive under any HTTP status, so it is checked before
// any status-derived classification.
func IsLimitExceeded(body map[string]any) bool {
	errs, ok := body["errors"].([]any)
	if !ok {
		return false
	}
	for _, e := range errs {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if m["value"] == "limit_exceeded" {
			return true
		}
	}
	return false
}

// classify maps a non-2xx status and its parsed body to an APIError.
// Pure function; the limit-exceeded payload check takes precedence over
// the status code.
func classify(status int, body map[string]any) *APIError {
	kind := KindUnexpected
	switch {
	case IsLimitExceeded(body):
		kind = KindLimitExceeded
	case status == 400:
		kind = KindBadRequest
	case status == 403:
		kind = KindForbidden
	case status == 404:
		kind = KindNotFound
	case status == 429:
		kind = KindTooManyRequests
	case status >= 400 && status < 500:
		kind = KindClientError
	case status >= 500 && status < 600:
		kind = KindServerError
	}
	return &APIError{Kind: kind, StatusCode: status, Body: body}
}
