package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{ErrRateLimited, true},
		{ErrTimeout, true},
		{ErrQuota, true},
		{ErrInvalidResponse, false},
		{ErrOther, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &Error{Kind: tt.kind, Provider: "p", Err: errors.New("boom")}
			assert.Equal(t, tt.retryable, e.Retryable())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("calling model: %w", &Error{Kind: ErrRateLimited, Provider: "p", Err: errors.New("429")})
	assert.Equal(t, ErrRateLimited, KindOf(wrapped))
	assert.Equal(t, ErrOther, KindOf(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	e := classify("p", context.DeadlineExceeded)
	assert.Equal(t, ErrTimeout, e.Kind)
	assert.Equal(t, "p", e.Provider)

	e = classify("p", errors.New("dial tcp: i/o timeout"))
	assert.Equal(t, ErrTimeout, e.Kind)

	e = classify("p", errors.New("connection refused"))
	assert.Equal(t, ErrOther, e.Kind)
	assert.ErrorContains(t, e, "connection refused")
}
