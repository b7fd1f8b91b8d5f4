// Package dispatch implements the gateway through which native code delivers
// completed wallet operations to their Go callbacks.
//
// The gateway may be entered from any goroutine or foreign thread,
// concurrently and for different handles at once. For each envelope it
// attaches the calling context, takes the registration from the registry,
// marshals the payload and invokes the callback synchronously. A handle is
// delivered at most once: duplicates, cancelled handles and unknown handles
// are logged and dropped, never surfaced to the callback owner.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/handles"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

var (
	deliveredCounter   = metrics.NewRegisteredCounter("zcnbridge/dispatch/delivered", nil)
	droppedCounter     = metrics.NewRegisteredCounter("zcnbridge/dispatch/dropped", nil)
	synthesizedCounter = metrics.NewRegisteredCounter("zcnbridge/dispatch/synthesized", nil)
	panickedCounter    = metrics.NewRegisteredCounter("zcnbridge/dispatch/panicked", nil)
)

// ErrNotDelivered is returned by Dispatch when no callback was invoked.
// It is informational: native callers ignore it.
var ErrNotDelivered = errors.New("zcnbridge: completion not delivered")

// Gateway is the single crossing point from native completions into Go.
type Gateway struct {
	registry *handles.Registry
	attacher Attacher
	logger   log.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAttacher sets how the calling context is attached. Defaults to OSThreadAttacher.
func WithAttacher(a Attacher) Option {
	return func(g *Gateway) {
		g.attacher = a
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l log.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New returns a gateway delivering to registrations in reg.
func New(reg *handles.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		registry: reg,
		attacher: OSThreadAttacher{},
		logger:   log.New("module", "dispatch"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the registry the gateway takes registrations from.
func (g *Gateway) Registry() *handles.Registry {
	return g.registry
}

// Dispatch delivers env to its registered callback. It returns after the
// callback returns. A nil error means the callback was invoked exactly once,
// either with the marshalled payload or with a synthesized failure payload.
func (g *Gateway) Dispatch(env marshal.Envelope) error {
	release, err := g.attacher.Attach()
	if err != nil {
		droppedCounter.Inc(1)
		g.logger.Error("failed to attach dispatching thread, dropping completion", "ref", env.Ref, "kind", env.Kind, "err", err)
		return fmt.Errorf("%w: attach: %v", ErrNotDelivered, err)
	}
	defer release()

	reg, err := g.registry.Take(env.Ref, env.Kind)
	switch {
	case errors.Is(err, handles.ErrNotFound):
		// Expected when a completion loses a race with Cancel or arrives twice.
		droppedCounter.Inc(1)
		g.logger.Debug("dropping completion for unknown or consumed handle", "ref", env.Ref, "kind", env.Kind)
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	case errors.Is(err, handles.ErrKindMismatch):
		droppedCounter.Inc(1)
		g.logger.Warn("dropping completion of the wrong kind", "ref", env.Ref, "kind", env.Kind, "registered", reg.Kind, "trace", reg.Trace)
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	case err != nil:
		droppedCounter.Inc(1)
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}

	args, liftErr := marshal.Lift(env)
	if liftErr != nil {
		synthesizedCounter.Inc(1)
		g.logger.Warn("failed to marshal completion, delivering error status", "ref", env.Ref, "kind", env.Kind, "trace", reg.Trace, "err", liftErr)
		args = marshal.Failure(env.Kind, liftErr)
	}
	return g.invoke(reg, args)
}

func (g *Gateway) invoke(reg handles.Registration, args marshal.Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			panickedCounter.Inc(1)
			g.logger.Error("callback panicked", "ref", reg.Handle, "kind", reg.Kind, "trace", reg.Trace, "panic", r)
			err = nil
		}
	}()
	if err := marshal.Invoke(reg.Target, reg.Kind, args); err != nil {
		droppedCounter.Inc(1)
		g.logger.Error("failed to invoke callback, dropping completion", "ref", reg.Handle, "kind", reg.Kind, "trace", reg.Trace, "err", err)
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}
	deliveredCounter.Inc(1)
	g.logger.Trace("delivered completion", "ref", reg.Handle, "kind", reg.Kind, "status", args.Status, "trace", reg.Trace)
	return nil
}

// Cancel retires h without invoking its callback. Cancelling a handle that
// was already delivered or cancelled is not an error.
func (g *Gateway) Cancel(h handles.Handle) bool {
	reg, err := g.registry.Cancel(h)
	if err != nil {
		g.logger.Debug("cancel of unknown or consumed handle", "ref", h)
		return false
	}
	g.logger.Debug("cancelled registration", "ref", h, "kind", reg.Kind, "trace", reg.Trace)
	return true
}

// Named entry points, one per operation kind. They mirror the native
// callback signatures and are what native trampolines call.

func (g *Gateway) OnSetupComplete(ref handles.Handle, status int32, errMsg marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindSetupComplete, Fields: []marshal.Value{
		marshal.Int(int64(status)), marshal.Str(errMsg),
	}})
}

func (g *Gateway) OnBalanceAvailable(ref handles.Handle, status int32, value int64, info marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindBalanceAvailable, Fields: []marshal.Value{
		marshal.Int(int64(status)), marshal.Int(value), marshal.Str(info),
	}})
}

func (g *Gateway) OnInfoAvailable(ref handles.Handle, op int32, status int32, info, errMsg marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindInfoAvailable, Fields: []marshal.Value{
		marshal.Int(int64(op)), marshal.Int(int64(status)), marshal.Str(info), marshal.Str(errMsg),
	}})
}

func (g *Gateway) OnMintNonceAvailable(ref handles.Handle, status int32, value int64, info marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindMintNonceAvailable, Fields: []marshal.Value{
		marshal.Int(int64(status)), marshal.Int(value), marshal.Str(info),
	}})
}

func (g *Gateway) OnNonceAvailable(ref handles.Handle, status int32, nonce int64, info marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindNonceAvailable, Fields: []marshal.Value{
		marshal.Int(int64(status)), marshal.Int(nonce), marshal.Str(info),
	}})
}

// OnBurnTicketsAvailable takes the ticket list in the hand-specified wire
// shape of marshal.EncodeTickets (or the sharder JSON form).
func (g *Gateway) OnBurnTicketsAvailable(ref handles.Handle, status int32, tickets []byte, info marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindBurnTicketsAvailable, Fields: []marshal.Value{
		marshal.Int(int64(status)), marshal.Buf(tickets), marshal.Str(info),
	}})
}

func (g *Gateway) OnWalletCreateComplete(ref handles.Handle, status int32, wallet, errMsg marshal.NativeString) error {
	return g.Dispatch(marshal.Envelope{Ref: ref, Kind: callback.KindWalletCreateComplete, Fields: []marshal.Value{
		marshal.Int(int64(status)), marshal.Str(wallet), marshal.Str(errMsg),
	}})
}
