// Package erruser provides errors whose Error() returns only a user-facing
// message. The cause stays reachable through Unwrap for "Details:" output,
// and an optional Hint tells the user what to run next.
package erruser

import "errors"

// Err holds a user-facing message, an optional remediation hint and an
// optional cause. Error() returns only Msg.
type Err struct {
	Msg  string
	Hint string
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error. Safe on a nil receiver.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message. If err is non-nil
// it is wrapped so callers can print "Details: %v". If err is nil a plain
// error is returned.
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// WithHint returns an *Err carrying a remediation hint. err may be nil.
func WithHint(msg, hint string, err error) error {
	return &Err{Msg: msg, Hint: hint, Err: err}
}

// HintOf returns the first non-empty hint found in err's chain, or "".
// Any error implementing Hinter contributes.
func HintOf(err error) string {
	for _, e := range flatten(err) {
		if h, ok := e.(Hinter); ok {
			if s := h.HintText(); s != "" {
				return s
			}
		}
	}
	return ""
}

// Hinter is implemented by errors that carry a remediation hint.
type Hinter interface {
	HintText() string
}

// HintText returns e.Hint.
func (e *Err) HintText() string {
	if e == nil {
		return ""
	}
	return e.Hint
}

// flatten walks err depth-first through both single and multi Unwrap.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	out := []error{err}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			out = append(out, flatten(e)...)
		}
	case interface{ Unwrap() error }:
		out = append(out, flatten(u.Unwrap())...)
	}
	return out
}
