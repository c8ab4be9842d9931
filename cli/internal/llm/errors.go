package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Error kinds. Match with errors.Is.
var (
	ErrProviderUnavailable = errors.New("no LLM provider available")
	ErrConnection          = errors.New("connection failed")
	ErrTimeout             = errors.New("request timed out")
	ErrModelNotFound       = errors.New("model not found")
	ErrRejected            = errors.New("request rejected")
	ErrMalformedResponse   = errors.New("malformed response")
)

// Error is a classified provider failure. Kind is one of the sentinels above.
type Error struct {
	Kind       error
	Provider   string
	Hint       string
	StatusCode int
	// Raw is the offending response text for ErrMalformedResponse.
	Raw string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// HintText returns the remediation hint.
func (e *Error) HintText() string {
	return e.Hint
}

// Retryable reports whether err is a transient failure worth one more try.
func Retryable(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout)
}

// Classify maps a transport error from an HTTP call made under a context
// derived from parent. Cancellation of parent itself is returned unchanged so
// it is never retried. Already classified errors pass through.
func Classify(parent context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	if parent.Err() != nil {
		return fmt.Errorf("%s: %w", provider, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Provider: provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: ErrTimeout, Provider: provider, Err: err}
	}
	return &Error{Kind: ErrConnection, Provider: provider, Err: err}
}

// IsConnRefused reports whether err is a refused or reset connection, or a
// connection closed before a response was read.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
