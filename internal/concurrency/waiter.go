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

import "sync"

// waiter lets goroutines block on "something changed" without polling, and
// unlike sync.Cond lets a waiter also give up when its context is done.
// Release broadcasts by swapping in a fresh channel; anyone parked on the
// old one observes it close.
type waiter struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan struct{})}
}

// wait returns a channel that closes the next time broadcast is called.
func (w *waiter) wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}

// broadcast wakes every goroutine currently parked in wait().
func (w *waiter) broadcast() {
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.ch)
	w.ch = make(chan struct{})
}
