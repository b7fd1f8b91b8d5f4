package proxy

import (
	"runtime"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/obinnaokechukwu/zcnbridge/callback"
)

// Factory constructs proxies over one Backend.
type Factory struct {
	backend Backend
	logger  log.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger for diagnostics.
func WithLogger(l log.Logger) Option {
	return func(f *Factory) {
		f.logger = l
	}
}

// NewFactory returns a factory whose proxies forward to backend.
func NewFactory(backend Backend, opts ...Option) *Factory {
	f := &Factory{backend: backend, logger: log.New("module", "proxy")}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Construct builds a proxy of class name around ref. The result implements
// Release; callback stubs also implement their kind's callback interface.
func (f *Factory) Construct(name string, ref Ref) (any, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return d.construct(f, ref), nil
}

// NewBurnTicket wraps ref as a burn ticket.
func (f *Factory) NewBurnTicket(ref Ref) *BurnTicket {
	t := &BurnTicket{}
	t.init(f, ClassBurnTicket, ref)
	runtime.SetFinalizer(t, (*BurnTicket).finalize)
	return t
}

// NewClientResponse wraps ref as a client details response.
func (f *Factory) NewClientResponse(ref Ref) *ClientResponse {
	c := &ClientResponse{}
	c.init(f, ClassGetClientResponse, ref)
	runtime.SetFinalizer(c, (*ClientResponse).finalize)
	return c
}

// NewCallbackStub wraps the native callback object ref as the Go callback
// for kind.
func (f *Factory) NewCallbackStub(kind callback.Kind, ref Ref) (any, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownClass, "%v", kind)
	}
	if _, err := Lookup(StubClass(kind)); err != nil {
		return nil, errors.Wrap(err, StubClass(kind))
	}
	return f.newStub(kind, ref), nil
}
