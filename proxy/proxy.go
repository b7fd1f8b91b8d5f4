// Package proxy builds Go objects that stand in for objects owned by the
// native wallet core.
//
// A proxy holds only a native reference. Every accessor forwards to the
// Backend on demand and nothing is cached, so a proxy always observes the
// native object's current state. The native reference is released exactly
// once, by Release or by a finalizer when the proxy becomes unreachable.
package proxy

import (
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

var (
	liveGauge        = metrics.NewRegisteredGauge("zcnbridge/proxy/live", nil)
	finalizedCounter = metrics.NewRegisteredCounter("zcnbridge/proxy/finalized", nil)
)

var (
	// ErrReleased is returned by accessors of a released proxy.
	ErrReleased = errors.New("zcnbridge: proxy object already released")

	// ErrUnknownClass is returned when constructing a class with no descriptor.
	ErrUnknownClass = errors.New("zcnbridge: unknown proxy class")

	// ErrNotInitialized is returned when descriptors are used before InitDescriptors.
	ErrNotInitialized = errors.New("zcnbridge: proxy descriptors not initialized")
)

// Ref is a native object reference.
type Ref int64

// Backend is the native side of proxied objects.
type Backend interface {
	ObjectString(ref Ref, field string) (string, error)
	ObjectInt64(ref Ref, field string) (int64, error)
	// Forward hands a completion to the native callback object ref.
	Forward(ref Ref, env marshal.Envelope) error
	ReleaseObject(ref Ref) error
}

// object is the state shared by every proxy.
type object struct {
	ref      Ref
	class    string
	backend  Backend
	logger   log.Logger
	released atomic.Bool
}

func (o *object) init(f *Factory, class string, ref Ref) {
	o.ref, o.class, o.backend, o.logger = ref, class, f.backend, f.logger
	liveGauge.Inc(1)
}

// Ref returns the native reference.
func (o *object) Ref() Ref { return o.ref }

// Released reports whether the native reference has been released.
func (o *object) Released() bool { return o.released.Load() }

func (o *object) check() error {
	if o.released.Load() {
		return ErrReleased
	}
	return nil
}

func (o *object) str(field string) (string, error) {
	if err := o.check(); err != nil {
		return "", err
	}
	return o.backend.ObjectString(o.ref, field)
}

func (o *object) int64(field string) (int64, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	return o.backend.ObjectInt64(o.ref, field)
}

// release drops the native reference if nobody has yet.
func (o *object) release() error {
	if !o.released.CompareAndSwap(false, true) {
		return nil
	}
	liveGauge.Dec(1)
	if err := o.backend.ReleaseObject(o.ref); err != nil {
		o.logger.Warn("failed to release native object", "class", o.class, "ref", o.ref, "err", err)
		return err
	}
	return nil
}

func (o *object) finalize() {
	if o.released.Load() {
		return
	}
	finalizedCounter.Inc(1)
	o.logger.Debug("releasing unreachable proxy", "class", o.class, "ref", o.ref)
	_ = o.release()
}
