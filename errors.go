package updater

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidArgument a malformed input such as a blank currency code
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNetwork transport failure, timeout or non-success status from the feed
	ErrNetwork = errors.New("network error")

	// ErrUpstreamFormat the feed could not be parsed at all
	ErrUpstreamFormat = errors.New("upstream format error")

	// ErrCircuitOpen calls to the feed are suspended after repeated failures
	ErrCircuitOpen = errors.New("circuit open")

	// ErrCacheUnavailable the cache backing store cannot be reached
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// StatusError a non-success HTTP status from the feed. It matches ErrNetwork.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: unexpected status %d %s", ErrNetwork, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNetwork
}

// NotFound reports whether the feed answered 404
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
