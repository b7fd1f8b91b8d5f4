//go:build !ios && !android && (amd64 || arm64)

package zcnbridge

import (
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/dispatch"
	"github.com/obinnaokechukwu/zcnbridge/internal/bindings"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
	"github.com/obinnaokechukwu/zcnbridge/proxy"
)

// The completion functions are registered with purego once per process to
// stay clear of its callback limit. They deliver to whichever gateway the
// open native client owns.
var (
	callbacksOnce    sync.Once
	callbacksInitErr error
	nativeGateway    atomic.Pointer[dispatch.Gateway]
)

// Init loads libzcncore and installs the completion functions. An empty path
// searches the usual library locations. It is safe to call multiple times.
func Init(path string) error {
	if err := bindings.Load(path); err != nil {
		return err
	}
	callbacksOnce.Do(func() {
		callbacksInitErr = installCallbacks()
	})
	return callbacksInitErr
}

// IsLoaded returns true if libzcncore has been successfully loaded.
func IsLoaded() bool {
	return bindings.IsLoaded()
}

// Version returns the version reported by libzcncore.
func Version() string {
	return bindings.Version()
}

// Open loads libzcncore as Init does and returns a client whose operations
// run in it. Only one native client may be open at a time; closing it allows
// another.
func Open(config ClientConfig, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := Init(config.LibraryPath); err != nil {
		return nil, err
	}
	c := NewClient(NativeBackend{}, config, append([]Option{WithProxyBackend(NativeBackend{})}, opts...)...)
	if !nativeGateway.CompareAndSwap(nil, c.gateway) {
		return nil, ErrAlreadyOpen
	}
	gw := c.gateway
	c.onClose = func() {
		nativeGateway.CompareAndSwap(gw, nil)
	}
	return c, nil
}

func installCallbacks() error {
	fns := []struct {
		kind callback.Kind
		fn   any
	}{
		{callback.KindSetupComplete, onSetupComplete},
		{callback.KindBalanceAvailable, onBalanceAvailable},
		{callback.KindInfoAvailable, onInfoAvailable},
		{callback.KindMintNonceAvailable, onMintNonceAvailable},
		{callback.KindNonceAvailable, onNonceAvailable},
		{callback.KindBurnTicketsAvailable, onBurnTicketsAvailable},
		{callback.KindWalletCreateComplete, onWalletCreateComplete},
	}
	for _, f := range fns {
		if err := bindings.SetCallback(f.kind, purego.NewCallback(f.fn)); err != nil {
			return err
		}
	}
	return nil
}

// Completion functions. Strings arrive as NUL-terminated UTF-8 owned by the
// core and are copied before the function returns.

// void (*)(int32_t ref, int32_t status, const char *err)
func onSetupComplete(_ purego.CDecl, ref, status int32, errMsg *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnSetupComplete(Handle(ref), status, marshal.FromC(errMsg))
	}
}

// void (*)(int32_t ref, int32_t status, int64_t value, const char *info)
func onBalanceAvailable(_ purego.CDecl, ref, status int32, value int64, info *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnBalanceAvailable(Handle(ref), status, value, marshal.FromC(info))
	}
}

// void (*)(int32_t ref, int32_t op, int32_t status, const char *info, const char *err)
func onInfoAvailable(_ purego.CDecl, ref, op, status int32, info, errMsg *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnInfoAvailable(Handle(ref), op, status, marshal.FromC(info), marshal.FromC(errMsg))
	}
}

// void (*)(int32_t ref, int32_t status, int64_t value, const char *info)
func onMintNonceAvailable(_ purego.CDecl, ref, status int32, value int64, info *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnMintNonceAvailable(Handle(ref), status, value, marshal.FromC(info))
	}
}

// void (*)(int32_t ref, int32_t status, int64_t nonce, const char *info)
func onNonceAvailable(_ purego.CDecl, ref, status int32, nonce int64, info *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnNonceAvailable(Handle(ref), status, nonce, marshal.FromC(info))
	}
}

// void (*)(int32_t ref, int32_t status, const uint8_t *buf, int32_t len, const char *info)
func onBurnTicketsAvailable(_ purego.CDecl, ref, status int32, buf *byte, n int32, info *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnBurnTicketsAvailable(Handle(ref), status, marshal.CBytes(buf, int(n)), marshal.FromC(info))
	}
}

// void (*)(int32_t ref, int32_t status, const char *wallet, const char *err)
func onWalletCreateComplete(_ purego.CDecl, ref, status int32, wallet, errMsg *byte) {
	if g := nativeGateway.Load(); g != nil {
		_ = g.OnWalletCreateComplete(Handle(ref), status, marshal.FromC(wallet), marshal.FromC(errMsg))
	}
}

// NativeBackend runs operations and serves proxied objects in libzcncore.
type NativeBackend struct{}

var (
	_ Backend       = NativeBackend{}
	_ proxy.Backend = NativeBackend{}
)

func (NativeBackend) GetBalance(ref Handle) error   { return bindings.GetBalance(int32(ref)) }
func (NativeBackend) GetMintNonce(ref Handle) error { return bindings.GetMintNonce(int32(ref)) }
func (NativeBackend) GetNonce(ref Handle) error     { return bindings.GetNonce(int32(ref)) }
func (NativeBackend) SetupAuth(ref Handle) error    { return bindings.SetupAuth(int32(ref)) }
func (NativeBackend) CreateWallet(ref Handle) error { return bindings.CreateWallet(int32(ref)) }

func (NativeBackend) GetInfo(op int, ref Handle) error {
	return bindings.GetInfo(op, int32(ref))
}

func (NativeBackend) GetNotProcessedZCNBurnTickets(ethAddress string, startNonce int64, ref Handle) error {
	return bindings.GetNotProcessedBurnTickets(ethAddress, startNonce, int32(ref))
}

func (NativeBackend) ObjectString(ref proxy.Ref, field string) (string, error) {
	return bindings.ObjectString(int64(ref), field)
}

func (NativeBackend) ObjectInt64(ref proxy.Ref, field string) (int64, error) {
	return bindings.ObjectInt64(int64(ref), field)
}

func (NativeBackend) Forward(ref proxy.Ref, env marshal.Envelope) error {
	return bindings.Forward(int64(ref), env)
}

func (NativeBackend) ReleaseObject(ref proxy.Ref) error {
	return bindings.ReleaseObject(int64(ref))
}
