// Package handles provides the thread-safe registry that maps opaque 32-bit
// reference numbers to pending callback targets.
//
// Native code cannot hold Go pointers, so when an asynchronous wallet
// operation starts the Go callback is registered here and the native core only
// receives the integer handle. When the operation completes the native core
// passes the handle back and the registration is taken, exactly once.
//
// Take and Cancel remove the registration atomically under one lock, so of
// any number of concurrent Take/Cancel calls on the same handle only one wins.
package handles

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/google/uuid"

	"github.com/obinnaokechukwu/zcnbridge/callback"
)

// liveGauge counts pending registrations across every registry.
var liveGauge = metrics.NewRegisteredGauge("zcnbridge/handles/live", nil)

type gauge interface {
	Inc(int64)
	Dec(int64)
}

var (
	// ErrNotFound is returned when a handle is unknown or was already consumed.
	ErrNotFound = errors.New("zcnbridge: handle not found")

	// ErrKindMismatch is returned by Take when the live registration belongs to
	// a different operation kind. The registration stays live.
	ErrKindMismatch = errors.New("zcnbridge: handle registered for a different operation kind")

	// ErrInvalidTarget is returned when a target cannot receive the kind's completion.
	ErrInvalidTarget = errors.New("zcnbridge: callback target does not implement the operation kind")

	// ErrExhausted is returned when every positive handle value is live.
	ErrExhausted = errors.New("zcnbridge: no free handle")
)

// Handle is an opaque reference number handed to native code. Valid handles
// are positive; zero is never allocated.
type Handle int32

// Registration is a pending callback.
type Registration struct {
	Handle  Handle
	Target  any
	Kind    callback.Kind
	Trace   uuid.UUID
	Created time.Time
}

// Registry stores pending registrations. The zero value is not usable; call New.
type Registry struct {
	mu      sync.Mutex
	pending map[Handle]Registration
	next    Handle
	live    gauge
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		pending: make(map[Handle]Registration),
		next:    1,
		live:    liveGauge,
	}
}

// Register stores target for an operation of the given kind and returns the
// registration with its freshly allocated handle.
//
// Thread-safe.
func (r *Registry) Register(target any, kind callback.Kind) (Registration, error) {
	if !kind.Valid() {
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidTarget, kind)
	}
	if !callback.Implements(target, kind) {
		return Registration{}, fmt.Errorf("%w: %T as %v", ErrInvalidTarget, target, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.allocLocked()
	if err != nil {
		return Registration{}, err
	}
	reg := Registration{
		Handle:  h,
		Target:  target,
		Kind:    kind,
		Trace:   uuid.New(),
		Created: time.Now(),
	}
	r.pending[h] = reg
	r.live.Inc(1)
	return reg, nil
}

// allocLocked walks the wrapping counter until it finds a value that is not live.
func (r *Registry) allocLocked() (Handle, error) {
	if len(r.pending) >= math.MaxInt32 {
		return 0, ErrExhausted
	}
	for {
		h := r.next
		if r.next == math.MaxInt32 {
			r.next = 1
		} else {
			r.next++
		}
		if _, live := r.pending[h]; !live {
			return h, nil
		}
	}
}

// Take atomically removes and returns the registration for h if it was
// registered for kind.
//
// Thread-safe.
func (r *Registry) Take(h Handle, kind callback.Kind) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.pending[h]
	if !ok {
		return Registration{}, ErrNotFound
	}
	if reg.Kind != kind {
		return reg, ErrKindMismatch
	}
	r.removeLocked(h)
	return reg, nil
}

// Cancel atomically removes the registration for h without invoking it.
//
// Thread-safe.
func (r *Registry) Cancel(h Handle) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.pending[h]
	if !ok {
		return Registration{}, ErrNotFound
	}
	r.removeLocked(h)
	return reg, nil
}

// CancelAll removes every pending registration and returns them.
//
// Thread-safe.
func (r *Registry) CancelAll() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Registration, 0, len(r.pending))
	for h, reg := range r.pending {
		out = append(out, reg)
		delete(r.pending, h)
	}
	r.live.Dec(int64(len(out)))
	return out
}

func (r *Registry) removeLocked(h Handle) {
	delete(r.pending, h)
	r.live.Dec(1)
}

// Lookup returns the pending registration for h without consuming it.
// Only meant for diagnostics.
//
// Thread-safe.
func (r *Registry) Lookup(h Handle) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.pending[h]
	return reg, ok
}

// Count returns the number of pending registrations.
// Useful for debugging and testing leaks.
//
// Thread-safe.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
