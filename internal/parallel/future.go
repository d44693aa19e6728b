// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"errors"
	"fmt"
)

// Future is the pending result of a task started with Go.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on the pool and returns a Future for its result.
// A panic inside fn is recovered and reported as the Future's error.
func Go[T any](p *WorkerPool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.Submit(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("parallel: task panicked: %v", r)
			}
		}()
		f.value, f.err = fn()
	})
	return f
}

// Wait blocks until the task finishes and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Join waits for every future and returns the values in the order given.
// Values of failed tasks are left at their zero value; all errors are joined.
func Join[T any](futures []*Future[T]) ([]T, error) {
	values := make([]T, len(futures))
	var errs []error
	for i, f := range futures {
		v, err := f.Wait()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[i] = v
	}
	return values, errors.Join(errs...)
}
