package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"gopherai-docqa/internal/ai"
)

// DelayFunc returns the wait before retry n, counting from 1.
type DelayFunc func(n uint) time.Duration

func Fixed(d time.Duration) DelayFunc {
	return func(uint) time.Duration { return d }
}

// Exponential waits base, 2*base, 4*base, ...
func Exponential(base time.Duration) DelayFunc {
	return func(n uint) time.Duration {
		if n == 0 {
			n = 1
		}
		return base << (n - 1)
	}
}

// Rule says how often a class of provider error is attempted and how long
// to wait between attempts. Attempts counts the first call.
type Rule struct {
	Class    error
	Attempts uint
	Delay    DelayFunc
}

// Policy is the retry table for one embedding batch. Errors that match no
// rule fail immediately.
type Policy struct {
	Rules []Rule
}

func DefaultPolicy() Policy {
	return NewPolicy(time.Second)
}

// NewPolicy builds the default table with every delay expressed in units of
// base.
func NewPolicy(base time.Duration) Policy {
	return Policy{Rules: []Rule{
		{Class: ai.ErrRateLimited, Attempts: 3, Delay: Exponential(base)},
		{Class: ai.ErrTimeout, Attempts: 3, Delay: Fixed(base)},
		{Class: ai.ErrConnection, Attempts: 3, Delay: Fixed(base)},
	}}
}

func (p Policy) rule(err error) (Rule, bool) {
	for _, r := range p.Rules {
		if errors.Is(err, r.Class) {
			return r, true
		}
	}
	return Rule{}, false
}

func (p Policy) maxAttempts() uint {
	attempts := uint(1)
	for _, r := range p.Rules {
		attempts = max(attempts, r.Attempts)
	}
	return attempts
}

// Do runs fn under the policy and returns the last error once retries are
// exhausted.
func (p Policy) Do(ctx context.Context, fn func() error, onRetry func(n uint, err error)) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.maxAttempts()),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			_, ok := p.rule(err)
			return ok
		}),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			r, ok := p.rule(err)
			if !ok || r.Delay == nil {
				return 0
			}
			return r.Delay(n)
		}),
	}
	for _, r := range p.Rules {
		opts = append(opts, retry.AttemptsForError(r.Attempts, r.Class))
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}
	return retry.Do(fn, opts...)
}
