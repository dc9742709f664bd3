package collector

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnmappedSymbol means the secondary provider has no id for the symbol.
	ErrUnmappedSymbol = errors.New("symbol has no secondary provider mapping")
	// ErrMalformedResponse means the upstream answered 2xx with a body we cannot use.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// RateLimited reports whether the upstream asked us to slow down.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func malformed(provider string, err error) error {
	return fmt.Errorf("%s: %w: %v", provider, ErrMalformedResponse, err)
}
