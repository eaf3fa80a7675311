// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package concurrency

import (
	"context"

	"github.com/meridian-idx/aggregator/internal/apperr"
	"github.com/meridian-idx/aggregator/pkg/budget"
)

// Request is the per-top-level-request view of the pool: its own fair
// share of each global slot class, recomputed from the pool's current
// active-request count on every Acquire.
type Request struct {
	pool           *Pool
	fastBudget     *budget.Budget
	headlessBudget *budget.Budget
}

func (r *Request) budgetFor(class Class) *budget.Budget {
	if class == ClassHeadless {
		return r.headlessBudget
	}
	return r.fastBudget
}

// Acquire reserves one unit of class, first against this request's fair
// share and then against the pool's global semaphore. It blocks until
// both are available or ctx is done.
func (r *Request) Acquire(ctx context.Context, class Class) error {
	b := r.budgetFor(class)
	b.SetLimit(r.pool.fairShare(class))

	for !b.TryConsume(1) {
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.ClassBudgetExhausted, ctx.Err(), "fair-share budget exhausted")
		case <-r.pool.waiter.wait():
			b.SetLimit(r.pool.fairShare(class))
		}
	}

	sem := r.pool.semFor(class)
	if err := sem.Acquire(ctx, 1); err != nil {
		b.Release(1)
		r.pool.waiter.broadcast()
		return apperr.Wrap(apperr.ClassBudgetExhausted, err, "global pool slot unavailable")
	}
	r.pool.inUseFor(class).Add(1)
	r.pool.publishUtilization(class)
	return nil
}

// Release returns one unit of class to both the fair-share budget and the
// pool's global semaphore, and wakes anyone parked waiting for a share.
func (r *Request) Release(class Class) {
	r.pool.inUseFor(class).Add(-1)
	r.pool.semFor(class).Release(1)
	r.budgetFor(class).Release(1)
	r.pool.publishUtilization(class)
	r.pool.waiter.broadcast()
}
