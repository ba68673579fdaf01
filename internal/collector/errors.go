package collector

import (
	"errors"
	"fmt"
)

// Kind classifies a collection failure. The kind, not the concrete error
// value, decides whether the retry wrapper will try again.
type Kind int

// Failure kinds, ordered roughly by how recoverable they are.
const (
	KindUnknown   Kind = iota
	KindNetwork        // non-200/429/auth status or connection failure; retryable
	KindRateLimit      // upstream 429; retryable with backoff
	KindAuth           // 401/403 on direct calls; drives fallback escalation
	KindBrowser        // navigation timeout, no intercepted response; retryable
	KindParse          // payload present but not traversable; schema drift
	KindConfig         // required identifier mapping absent; data-setup problem
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindBrowser:
		return "browser"
	case KindParse:
		return "parse"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error carries a failure kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

// Errorf builds a kinded error, wrapping any %w operand.
func Errorf(kind Kind, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: kind, msg: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.err }

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the retry wrapper should attempt again. Parse
// failures mean upstream schema drift and need a code change, not another
// attempt; config failures need operator attention. Auth errors surface here
// only after fallback escalation has also failed, at which point site access
// is fundamentally blocked.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit, KindBrowser:
		return true
	default:
		return false
	}
}
