// Copyright 2024 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry wraps cenkalti/backoff/v4 with a bounded exponential
// backoff policy: base 50ms, factor 2, max 4 retries, full jitter. Each
// call gets a fresh ExponentialBackOff since the policy carries state,
// bounded by WithMaxRetries and cancellable via WithContext.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures the retry loop.
type Policy struct {
	BaseDelay  time.Duration
	MaxRetries uint64
	Multiplier float64
}

// DefaultPolicy is the standard default: 50ms base, factor 2, 4
// retries, full jitter.
func DefaultPolicy() Policy {
	return Policy{BaseDelay: 50 * time.Millisecond, MaxRetries: 4, Multiplier: 2}
}

// Do runs fn, retrying on error according to p until it succeeds, the
// retry budget is exhausted, or ctx is cancelled. onRetry, if non-nil,
// is invoked before each retry sleep with the error that triggered it
// and the attempt number (starting at 1).
func Do(ctx context.Context, p Policy, fn func() error, onRetry func(err error, attempt int)) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.BaseDelay
	expBackoff.Multiplier = p.Multiplier
	expBackoff.MaxInterval = p.BaseDelay * time.Duration(1<<p.MaxRetries)
	// RandomizationFactor=1 yields full jitter: the interval is drawn
	// uniformly between 0 and 2x the computed interval.
	expBackoff.RandomizationFactor = 1

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, p.MaxRetries), ctx)
	return backoff.RetryNotify(func() error {
		attempt++
		return fn()
	}, policy, func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(err, attempt)
		}
	})
}
