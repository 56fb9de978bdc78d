package shared

import (
	"errors"

	"github.com/samber/oops"
)

// Error kinds surfaced by the position and geocode sources. Wrapped errors
// keep the sentinel reachable through errors.Is.
var (
	// ErrNetwork covers transport, DNS and timeout failures
	ErrNetwork = errors.New("network error")
	// ErrParse covers malformed or incomplete bodies in a successful response
	ErrParse = errors.New("parse error")
	// ErrUpstream is returned when a source (or the proxy fronting it) reports failure
	ErrUpstream = errors.New("upstream error")
)

// Error codes attached through oops
const (
	CodeNetwork  = "NETWORK_ERROR"
	CodeParse    = "PARSE_ERROR"
	CodeUpstream = "UPSTREAM_ERROR"
	CodeUnknown  = "UNKNOWN_ERROR"
)

// NewNetworkError wraps a transport failure raised in the given domain
func NewNetworkError(domain string, cause error, format string, args ...any) error {
	return oops.
		Code(CodeNetwork).
		In(domain).
		With("cause", errorString(cause)).
		Wrapf(ErrNetwork, format, args...)
}

// NewParseError reports a response body that could not be used
func NewParseError(domain string, format string, args ...any) error {
	return oops.
		Code(CodeParse).
		In(domain).
		Wrapf(ErrParse, format, args...)
}

// NewUpstreamError reports a non-success status from an upstream source
func NewUpstreamError(domain string, status int, message string) error {
	return oops.
		Code(CodeUpstream).
		In(domain).
		With("status", status).
		Wrapf(ErrUpstream, "status %d: %s", status, message)
}

// Kind returns the error code for err, or CodeUnknown
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetwork):
		return CodeNetwork
	case errors.Is(err, ErrParse):
		return CodeParse
	case errors.Is(err, ErrUpstream):
		return CodeUpstream
	default:
		return CodeUnknown
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
