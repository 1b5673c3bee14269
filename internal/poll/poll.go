// Copyright 2025 Tom Barlow
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

// Package poll provides the fixed-interval condition waiting used across
// lock acquisition, readiness probing, and process exit waiting.
package poll

import (
	"context"
	"time"
)

// Condition reports whether the awaited state has been reached. Returning a
// non-nil error aborts the wait immediately.
type Condition func() (done bool, err error)

// Until evaluates cond immediately and then once per interval until cond
// reports done, cond returns an error, or ctx is cancelled. On cancellation
// the context's error is returned, so a deadline surfaces as
// context.DeadlineExceeded.
func Until(ctx context.Context, interval time.Duration, cond Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done, err := cond()
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := cond()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// UntilTimeout is a convenience wrapper around Until that derives a deadline
// from now+timeout.
func UntilTimeout(timeout, interval time.Duration, cond Condition) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Until(ctx, interval, cond)
}
