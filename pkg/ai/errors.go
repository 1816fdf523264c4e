package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// ErrorKind classifies LLM failures so callers can decide between
// falling back to the next provider and failing enrichment outright.
type ErrorKind string

const (
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrTimeout         ErrorKind = "timeout"
	ErrQuota           ErrorKind = "quota"
	ErrInvalidResponse ErrorKind = "invalid_response"
	ErrOther           ErrorKind = "other"
)

// Error wraps a provider failure with its classification.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the next provider in the chain should be
// tried. Invalid responses are a prompt problem, not a provider problem,
// so they are not retried on a different provider.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrTimeout, ErrQuota:
		return true
	default:
		return false
	}
}

// KindOf extracts the error kind, defaulting to ErrOther.
func KindOf(err error) ErrorKind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return ErrOther
}

// classify maps transport and API errors onto error kinds.
func classify(provider string, err error) *Error {
	kind := ErrOther

	var apiErr *openai.Error
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case 429:
			kind = ErrRateLimited
			if strings.Contains(strings.ToLower(apiErr.Error()), "quota") {
				kind = ErrQuota
			}
		case 402, 403:
			kind = ErrQuota
		}
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case strings.Contains(strings.ToLower(err.Error()), "timeout"):
		kind = ErrTimeout
	}

	return &Error{Kind: kind, Provider: provider, Err: err}
}
