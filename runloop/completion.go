// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package runloop

import (
	"github.com/gogpu/compositor/driver"
)

type completionKind uint8

const (
	completionNone completionKind = iota
	completionCallback
	completionResume
)

// Completion is what happens when a source's semaphore reaches its value:
// either a callback runs on the loop goroutine, or a suspended caller is
// resumed by closing its channel.
type Completion struct {
	kind     completionKind
	callback func()
	resume   chan<- struct{}
}

// Callback returns a completion that calls fn on the loop goroutine. fn
// must not block and must not call Run.
func Callback(fn func()) Completion {
	return Completion{kind: completionCallback, callback: fn}
}

// Resume returns a completion that closes ch.
func Resume(ch chan<- struct{}) Completion {
	return Completion{kind: completionResume, resume: ch}
}

func (c Completion) fire() {
	switch c.kind {
	case completionCallback:
		if c.callback != nil {
			c.callback()
		}
	case completionResume:
		if c.resume != nil {
			close(c.resume)
		}
	}
}

// Source is a timeline semaphore, the value to wait for and the
// completion to run once it is reached.
type Source struct {
	Semaphore  driver.TimelineSemaphore
	Value      uint64
	Completion Completion

	err error
}

// NewSource creates a source.
func NewSource(sem driver.TimelineSemaphore, value uint64, c Completion) *Source {
	return &Source{Semaphore: sem, Value: value, Completion: c}
}

// Err returns the error that completed the source in place of its value,
// such as driver.ErrDestroyed. It is valid once the completion has run.
func (s *Source) Err() error { return s.err }

// reached reports whether the semaphore is at or past the source value.
func (s *Source) reached() (bool, error) {
	v, err := s.Semaphore.Value()
	if err != nil {
		return false, err
	}
	return v >= s.Value, nil
}
