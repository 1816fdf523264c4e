package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// ErrBudgetExhausted is returned when the per-document cost budget does
// not cover another call.
var ErrBudgetExhausted = errors.New("llm cost budget exhausted")

// ErrChainExhausted is returned when every provider in the chain failed.
var ErrChainExhausted = errors.New("all llm providers failed")

// chainMember pairs a provider with its concurrency limiter.
type chainMember struct {
	service *Service
	limiter *RateLimiter
}

// FallbackChain tries providers in priority order, cheap-fast first.
// Rate limits, timeouts and quota errors move on to the next provider;
// anything else is returned as-is so the caller can decide.
type FallbackChain struct {
	members     []chainMember
	logger      *log.Logger
	callTimeout time.Duration
}

// ChainProvider configures one member of the chain.
type ChainProvider struct {
	Service       *Service
	MaxConcurrent int
}

func NewFallbackChain(logger *log.Logger, callTimeout time.Duration, providers ...ChainProvider) *FallbackChain {
	members := make([]chainMember, 0, len(providers))
	for _, p := range providers {
		maxConcurrent := p.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 4
		}
		members = append(members, chainMember{
			service: p.Service,
			limiter: NewRateLimiter(maxConcurrent),
		})
	}
	return &FallbackChain{
		members:     members,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// Complete walks the chain. Each attempt has its own timeout and is
// charged to tracker; budget is checked before each attempt so a
// runaway document cannot keep spending.
func (c *FallbackChain) Complete(ctx context.Context, req CompletionRequest, tracker *CostTracker, budgetUSD float64) (CompletionResult, error) {
	if len(c.members) == 0 {
		return CompletionResult{}, fmt.Errorf("fallback chain has no providers")
	}

	var lastErr error
	for _, member := range c.members {
		if budgetUSD > 0 && tracker != nil && tracker.TotalUSD() >= budgetUSD {
			return CompletionResult{}, ErrBudgetExhausted
		}

		if err := member.limiter.Acquire(ctx); err != nil {
			return CompletionResult{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		result, err := member.service.Complete(callCtx, req)
		cancel()
		member.limiter.Release()

		if err == nil {
			if tracker != nil {
				tracker.Record(CallCost{
					Provider:  result.Provider,
					Model:     result.Model,
					TokensIn:  result.Usage.TokensIn,
					TokensOut: result.Usage.TokensOut,
					USD:       result.Usage.USD,
				})
			}
			return result, nil
		}

		lastErr = err
		var aiErr *Error
		if errors.As(err, &aiErr) && !aiErr.Retryable() {
			return CompletionResult{}, err
		}
		if ctx.Err() != nil {
			return CompletionResult{}, ctx.Err()
		}
		c.logger.Warn("provider failed, trying next", "provider", member.service.Name(), "error", err)
	}

	return CompletionResult{}, fmt.Errorf("%w: %v", ErrChainExhausted, lastErr)
}

// Providers lists the provider names in chain order.
func (c *FallbackChain) Providers() []string {
	names := make([]string, 0, len(c.members))
	for _, m := range c.members {
		names = append(names, m.service.Name())
	}
	return names
}
