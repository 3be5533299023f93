package errx

import (
	"fmt"
	"net/http"
)

// APIError is the normalized failure of a call to an external business API.
type APIError struct {
	StatusCode  int
	Key         string
	Identifier  string
	UserMessage string
	Err         error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: status=%d", e.StatusCode)
	if e.Key != "" {
		msg += " key=" + e.Key
	}
	if e.Identifier != "" {
		msg += " identifier=" + e.Identifier
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ConfigError signals a deploy-time mistake such as a missing endpoint
// template. It is never retried.
type ConfigError struct {
	Component string
	Detail    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Detail)
}

// NewConfigError builds a ConfigError.
func NewConfigError(component, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Detail: fmt.Sprintf(format, args...)}
}
