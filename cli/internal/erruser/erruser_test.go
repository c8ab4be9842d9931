package erruser

import (
	"errors"
	"fmt"
	"testing"
)

func TestErr_Error_returnsMsgOnly(t *testing.T) {
	t.Parallel()
	cause := errors.New("exit status 128")
	e := New("This directory is not inside a Git repository.", cause)
	if got := e.Error(); got != "This directory is not inside a Git repository." {
		t.Errorf("Error() = %q, want user message only", got)
	}
	if !errors.Is(e, cause) {
		t.Error("errors.Is(e, cause) should be true")
	}
	var unwrapped *Err
	if !errors.As(e, &unwrapped) {
		t.Fatal("errors.As to *Err failed")
	}
	if unwrapped.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want cause", unwrapped.Unwrap())
	}
}

func TestNew_nilErr_returnsSimpleError(t *testing.T) {
	t.Parallel()
	e := New("Nothing staged.", nil)
	if e.Error() != "Nothing staged." {
		t.Errorf("Error() = %q", e.Error())
	}
	if errors.Unwrap(e) != nil {
		t.Errorf("Unwrap() should be nil for New(msg, nil), got %v", errors.Unwrap(e))
	}
}

func TestErr_nilReceiver_noPanic(t *testing.T) {
	t.Parallel()
	var e *Err
	if got := e.Error(); got != "" {
		t.Errorf("(*Err)(nil).Error() = %q, want %q", got, "")
	}
	if e.Unwrap() != nil {
		t.Errorf("(*Err)(nil).Unwrap() = %v, want nil", e.Unwrap())
	}
	if e.HintText() != "" {
		t.Errorf("(*Err)(nil).HintText() = %q, want empty", e.HintText())
	}
}

type multiErr struct{ errs []error }

func (m multiErr) Error() string   { return "multi" }
func (m multiErr) Unwrap() []error { return m.errs }

func TestHintOf(t *testing.T) {
	t.Parallel()
	hinted := WithHint("No provider available.", "Run: ollama serve", nil)
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), ""},
		{"direct", hinted, "Run: ollama serve"},
		{"wrapped", fmt.Errorf("generate: %w", hinted), "Run: ollama serve"},
		{"joined", multiErr{errs: []error{errors.New("a"), hinted}}, "Run: ollama serve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HintOf(tt.err); got != tt.want {
				t.Errorf("HintOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
