package jsonrpcx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danghamo/satwatch/internal/domain/shared"
)

const Version = "2.0"

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is a server push: a request without an id
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification builds a 2.0 notification
func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: Version, Method: method, Params: params}
}

// JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// implementation defined server errors
	UpstreamError    = -32001
	ServiceClosed    = -32002
	ServiceUnhealthy = -32003
)

type contextKey string

const errorKey contextKey = "jsonrpc_error"

// ParseRequest parses a JSON-RPC 2.0 request from the HTTP request body.
// An empty body is accepted as a call without params.
func ParseRequest(r *http.Request) (*Request, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return &Request{JSONRPC: Version}, nil
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if req.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", req.JSONRPC)
	}
	return &req, nil
}

// Success sends a successful JSON-RPC 2.0 response
func Success(w http.ResponseWriter, id any, result any) {
	Write(w, Response{
		JSONRPC: Version,
		Result:  result,
		ID:      id,
	})
}

// SetError stores a JSON-RPC error in the request context for the error
// adapter middleware to write
func SetError(r *http.Request, id any, code int, message string) *http.Request {
	response := &Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
	return r.WithContext(context.WithValue(r.Context(), errorKey, response))
}

// WithError is SetError that overwrites *r in place
func WithError(r *http.Request, id any, code int, message string) {
	*r = *SetError(r, id, code, message)
}

// ErrorFromContext returns an error response stored by SetError
func ErrorFromContext(ctx context.Context) (*Response, bool) {
	resp, ok := ctx.Value(errorKey).(*Response)
	return resp, ok
}

// CodeFor maps a domain error onto a JSON-RPC error code
func CodeFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUpstream), errors.Is(err, shared.ErrNetwork):
		return UpstreamError
	case errors.Is(err, shared.ErrParse):
		return InvalidParams
	default:
		return InternalError
	}
}

// ErrorAdapter lets middleware send error responses
type ErrorAdapter interface {
	SendError(w http.ResponseWriter, id any, code int, message string)
}

type errorAdapter struct{}

// NewErrorAdapter creates a new error adapter for middleware use
func NewErrorAdapter() ErrorAdapter {
	return &errorAdapter{}
}

func (ea *errorAdapter) SendError(w http.ResponseWriter, id any, code int, message string) {
	Write(w, Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// Write sends a JSON-RPC 2.0 response (always HTTP 200)
func Write(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// RequestT documents a request with typed params for swagger
type RequestT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Method  string `json:"method"`
	Params  T      `json:"params,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// ResponseT documents a response with a typed result for swagger
type ResponseT[T any] struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Result  T      `json:"result"`
	ID      any    `json:"id,omitempty"`
}

// ErrorResponse documents an error response for swagger
type ErrorResponse struct {
	JSONRPC string `json:"jsonrpc" example:"2.0"`
	Error   Error  `json:"error"`
	ID      any    `json:"id,omitempty"`
}
