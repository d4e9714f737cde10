// Package summary sends assembled prompts to a provider and classifies the
// outcome.
package summary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Kind classifies a failed summary call.
type Kind int

const (
	// KindNone marks a successful result.
	KindNone Kind = iota
	// KindProviderCallFailed is any provider failure.
	KindProviderCallFailed
	// KindInputTooLarge is a provider failure caused by prompt size.
	KindInputTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindProviderCallFailed:
		return "ProviderCallFailed"
	case KindInputTooLarge:
		return "InputTooLarge"
	default:
		return "None"
	}
}

var (
	// ErrProviderCallFailed matches every failed result.
	ErrProviderCallFailed = errors.New("provider call failed")
	// ErrInputTooLarge matches failures caused by prompt size.
	ErrInputTooLarge = errors.New("input too large for model context")
)

// Failure is the error carried by an unsuccessful Result.
type Failure struct {
	Kind  Kind
	Cause error
}

func (f *Failure) Error() string {
	if f.Kind == KindInputTooLarge {
		return fmt.Sprintf("%v: %v", ErrInputTooLarge, f.Cause)
	}
	return fmt.Sprintf("%v: %v", ErrProviderCallFailed, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Is makes InputTooLarge a subtype of ProviderCallFailed.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrProviderCallFailed:
		return true
	case ErrInputTooLarge:
		return f.Kind == KindInputTooLarge
	}
	return false
}

// Hint returns a remediation hint for the user, if any.
func (f *Failure) Hint() string {
	if f.Kind == KindInputTooLarge {
		return "the prompt probably exceeded the model context window; reduce the data further (fewer files or smaller reduction windows)"
	}
	return ""
}

// Result is the outcome of one summary request.
type Result struct {
	OK       bool
	Text     string
	Failure  *Failure
	Attempts int
	Cached   bool
}

// Err returns the failure as an error, or nil.
func (r Result) Err() error {
	if r.OK || r.Failure == nil {
		return nil
	}
	return r.Failure
}

func success(text string, attempts int) Result {
	return Result{OK: true, Text: text, Attempts: attempts}
}

func failure(err error, attempts int) Result {
	return Result{Failure: &Failure{Kind: Classify(err), Cause: err}, Attempts: attempts}
}

var inputTooLargeIndicators = []string{
	"context_length_exceeded",
	"prompt is too long",
	"tokens",
}

// Classify maps a provider error to a failure kind. Structured errors are
// decided by their fields first: a context-length code is InputTooLarge and
// a temporary status (408, 429, 5xx) is ProviderCallFailed whatever its
// message says. Remaining errors are InputTooLarge when their text carries a
// size indicator (case-insensitive), ProviderCallFailed otherwise.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, provider.ErrContextLength) {
		return KindInputTooLarge
	}
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		if provider.IsContextLengthCode(statusErr.Code) {
			return KindInputTooLarge
		}
		if statusErr.Temporary() {
			return KindProviderCallFailed
		}
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range inputTooLargeIndicators {
		if strings.Contains(msg, indicator) {
			return KindInputTooLarge
		}
	}
	return KindProviderCallFailed
}
