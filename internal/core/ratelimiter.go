package core

/*
rxavail — resumable RDAP domain availability checker in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidRate is returned for a non-positive or non-finite request rate.
var ErrInvalidRate = errors.New("rate must be a positive number of requests per minute")

// RateLimiter paces lookups to a fixed number of requests per minute.
// It never bursts: the first Acquire returns immediately and every later one
// returns no earlier than one interval after the previous Acquire returned.
//
// The token bucket from x/time/rate (burst 1) does the scheduling. Because a
// bucket measures spacing between reservations rather than between returns,
// Acquire additionally enforces a floor on the gap since it last returned.
//
// Concurrency: Acquire is safe for concurrent use; callers are serialized.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration

	// mu serializes Acquire so that the floor check and the update of last
	// happen as one step.
	mu   sync.Mutex
	last time.Time
}

// NewRateLimiter creates a RateLimiter for the given budget.
//
// Parameters:
//
//	perMinute: The maximum number of Acquire returns per minute. Must be > 0.
//
// Returns:
//
//	The limiter, or ErrInvalidRate.
func NewRateLimiter(perMinute float64) (*RateLimiter, error) {
	if perMinute <= 0 || math.IsNaN(perMinute) || math.IsInf(perMinute, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, perMinute)
	}
	interval := time.Duration(float64(time.Minute) / perMinute)
	return &RateLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}, nil
}

// Interval is the minimum spacing between two Acquire returns.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Acquire blocks until the next request is permitted or ctx is done.
// On cancellation it returns ctx.Err(); the caller must not issue the request.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := rl.limiter.Wait(ctx); err != nil {
		// Wait fails fast when the deadline is closer than the next token;
		// report the cancellation the caller will observe anyway.
		if ctx.Err() == nil {
			<-ctx.Done()
		}
		return ctx.Err()
	}

	if !rl.last.IsZero() {
		if gap := rl.interval - time.Since(rl.last); gap > 0 {
			timer := time.NewTimer(gap)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	rl.last = time.Now()
	return nil
}
