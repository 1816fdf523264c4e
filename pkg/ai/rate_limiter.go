package ai

import "context"

// RateLimiter bounds concurrent in-flight calls to one provider. Sized
// to stay under the provider's documented rate limits; saturated calls
// queue instead of failing.
type RateLimiter struct {
	slots chan struct{}
}

func NewRateLimiter(maxConcurrent int) *RateLimiter {
	return &RateLimiter{slots: make(chan struct{}, maxConcurrent)}
}

func (r *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RateLimiter) Release() {
	<-r.slots
}
