package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBlockNotFound is returned when a height does not resolve to a block.
var ErrBlockNotFound = errors.New("block not found")

// Kind classifies a failed remote call.
type Kind uint8

const (
	// KindFatal is any failure that repeating the same request will not fix.
	KindFatal Kind = iota
	// KindTimeout means the remote side ran out of time; a smaller request may succeed.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	default:
		return "fatal"
	}
}

// JSON-RPC error codes that signal the node gave up on the request (EIP-1474).
const (
	codeLimitExceeded = -32005
)

func codeKind(code int) Kind {
	if code == codeLimitExceeded {
		return KindTimeout
	}
	return KindFatal
}

// Error is the classified failure of a single JSON-RPC call.
type Error struct {
	Method   string
	Endpoint string
	Kind     Kind
	// Code is the JSON-RPC error code, or the HTTP status for transport level failures.
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rpc %s (%s)", e.Method, e.Kind)
	if e.Code != 0 {
		fmt.Fprintf(&b, " code %d", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetriable reports whether err is a remote timeout worth retrying with a smaller request.
func IsRetriable(err error) bool {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind == KindTimeout
	}
	return false
}
