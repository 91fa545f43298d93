package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyImports means no import slot freed up within the wait limit.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

const (
	DefaultMaxConcurrentImports = 5
	DefaultMaxWaitTime          = 30 * time.Second

	drainPoll = 100 * time.Millisecond
)

// ImportLimiter caps how many spreadsheets are parsed at the same time.
// An .xlsx workbook is held in memory while it is read, so each import
// holds a slot until it finishes.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	waiting atomic.Int32
}

// NewImportLimiter returns a limiter with maxConcurrent slots. Callers wait
// at most maxWait for a slot. Non-positive values select the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ImportLimiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire takes a slot, waiting up to the limiter's maxWait. It returns
// ctx.Err() if the caller gives up first. Every successful Acquire must be
// paired with Release.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	default:
	}

	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// TryAcquire takes a slot only if one is free.
func (l *ImportLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	<-l.slots
}

// Run calls fn while holding a slot.
func (l *ImportLimiter) Run(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// ActiveCount is the number of slots in use.
func (l *ImportLimiter) ActiveCount() int {
	return len(l.slots)
}

// WaitForDrain returns once no slot is in use, or with ctx.Err().
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// ImportLimiterStatus is served by the import status endpoint.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Waiting       int `json:"waiting"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *ImportLimiter) Status() ImportLimiterStatus {
	active := len(l.slots)
	return ImportLimiterStatus{
		Active:        active,
		Waiting:       int(l.waiting.Load()),
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
