package zcnbridge

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/dispatch"
	"github.com/obinnaokechukwu/zcnbridge/internal/handles"
	"github.com/obinnaokechukwu/zcnbridge/proxy"
)

var (
	startedCounter     = metrics.NewRegisteredCounter("zcnbridge/client/started", nil)
	startFailedCounter = metrics.NewRegisteredCounter("zcnbridge/client/start_failed", nil)
	abandonedCounter   = metrics.NewRegisteredCounter("zcnbridge/client/abandoned", nil)
)

// Backend is the native wallet core. Each method starts an operation that
// completes later through the gateway with ref. An error means the operation
// was not started and will never complete.
type Backend interface {
	GetBalance(ref Handle) error
	GetMintNonce(ref Handle) error
	GetNonce(ref Handle) error
	GetInfo(op int, ref Handle) error
	SetupAuth(ref Handle) error
	CreateWallet(ref Handle) error
	GetNotProcessedZCNBurnTickets(ethAddress string, startNonce int64, ref Handle) error
}

// Client issues wallet operations and routes their completions to callbacks.
type Client struct {
	backend Backend
	config  ClientConfig
	gateway *dispatch.Gateway
	proxies *proxy.Factory
	objects proxy.Backend
	logger  log.Logger
	closed  atomic.Bool
	done    chan struct{}
	onClose func()
}

// Option configures a Client.
type Option func(*Client)

// WithGateway makes the client register callbacks in gw's registry. Use it
// when the backend was built around gw.
func WithGateway(gw *dispatch.Gateway) Option {
	return func(c *Client) {
		c.gateway = gw
	}
}

// WithProxyBackend enables proxies over native objects served by b.
func WithProxyBackend(b proxy.Backend) Option {
	return func(c *Client) {
		c.objects = b
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient returns a client starting operations on backend.
func NewClient(backend Backend, config ClientConfig, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		config:  config,
		logger:  log.New("module", "zcnbridge"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gateway == nil {
		var attacher dispatch.Attacher = dispatch.NoopAttacher{}
		if config.LockOSThread {
			attacher = dispatch.OSThreadAttacher{}
		}
		c.gateway = dispatch.New(handles.New(), dispatch.WithAttacher(attacher), dispatch.WithLogger(c.logger))
	}
	if c.objects != nil {
		proxy.InitDescriptors()
		c.proxies = proxy.NewFactory(c.objects, proxy.WithLogger(c.logger))
	}
	return c
}

// Gateway returns the gateway completions must be delivered to.
func (c *Client) Gateway() *dispatch.Gateway { return c.gateway }

// Registry returns the registry of pending operations.
func (c *Client) Registry() *handles.Registry { return c.gateway.Registry() }

// Proxies returns the proxy factory, or nil when no proxy backend was set.
func (c *Client) Proxies() *proxy.Factory { return c.proxies }

// Pending returns the number of operations awaiting completion.
func (c *Client) Pending() int { return c.gateway.Registry().Count() }

func (c *Client) start(target any, kind callback.Kind, begin func(Handle) error) (Handle, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	reg, err := c.gateway.Registry().Register(target, kind)
	if err != nil {
		return 0, errors.Wrapf(err, "registering %v callback", kind)
	}
	if err := begin(reg.Handle); err != nil {
		startFailedCounter.Inc(1)
		c.gateway.Cancel(reg.Handle)
		c.logger.Warn("failed to start operation", "kind", kind, "ref", reg.Handle, "trace", reg.Trace, "err", err)
		return 0, errors.Wrapf(err, "starting %v", kind)
	}
	startedCounter.Inc(1)
	c.logger.Trace("started operation", "kind", kind, "ref", reg.Handle, "trace", reg.Trace)
	return reg.Handle, nil
}

// GetBalance starts a balance query completing on cb.
func (c *Client) GetBalance(cb callback.GetBalanceCallback) (Handle, error) {
	return c.start(cb, callback.KindBalanceAvailable, c.backend.GetBalance)
}

// GetMintNonce starts a mint nonce query completing on cb.
func (c *Client) GetMintNonce(cb callback.GetMintNonceCallback) (Handle, error) {
	return c.start(cb, callback.KindMintNonceAvailable, c.backend.GetMintNonce)
}

// GetNonce starts a nonce query completing on cb.
func (c *Client) GetNonce(cb callback.GetNonceCallback) (Handle, error) {
	return c.start(cb, callback.KindNonceAvailable, c.backend.GetNonce)
}

// GetInfo starts info query op completing on cb.
func (c *Client) GetInfo(op int, cb callback.GetInfoCallback) (Handle, error) {
	return c.start(cb, callback.KindInfoAvailable, func(ref Handle) error {
		return c.backend.GetInfo(op, ref)
	})
}

// SetupAuth starts split-key auth setup completing on cb.
func (c *Client) SetupAuth(cb callback.AuthCallback) (Handle, error) {
	return c.start(cb, callback.KindSetupComplete, c.backend.SetupAuth)
}

// CreateWallet starts wallet creation completing on cb.
func (c *Client) CreateWallet(cb callback.WalletCallback) (Handle, error) {
	return c.start(cb, callback.KindWalletCreateComplete, c.backend.CreateWallet)
}

// GetNotProcessedZCNBurnTickets starts a query for the burn tickets of
// ethAddress not yet processed, from startNonce on, completing on cb.
func (c *Client) GetNotProcessedZCNBurnTickets(ethAddress string, startNonce int64, cb callback.GetNotProcessedZCNBurnTicketsCallback) (Handle, error) {
	return c.start(cb, callback.KindBurnTicketsAvailable, func(ref Handle) error {
		return c.backend.GetNotProcessedZCNBurnTickets(ethAddress, startNonce, ref)
	})
}

// Cancel abandons the pending operation h. It reports whether h was still
// pending; a completion arriving later is dropped.
func (c *Client) Cancel(h Handle) bool {
	return c.gateway.Cancel(h)
}

// Close cancels every pending operation and refuses new ones. It is safe to
// call multiple times.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	regs := c.gateway.Registry().CancelAll()
	close(c.done)
	if len(regs) > 0 {
		abandonedCounter.Inc(int64(len(regs)))
		c.logger.Info("closed client with pending operations", "pending", len(regs))
	}
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

type waiter interface {
	Done() <-chan struct{}
}

// wait blocks until stub has its result. If ctx ends first the operation is
// cancelled; should the completion win that race its result is still used.
// Closing the client ends every wait with ErrClosed unless the result is
// already in.
func (c *Client) wait(ctx context.Context, h Handle, kind callback.Kind, stub waiter) error {
	if _, ok := ctx.Deadline(); !ok && c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	select {
	case <-stub.Done():
		return nil
	case <-c.done:
		return c.closedWait(h, kind, stub)
	case <-ctx.Done():
	}
	if c.gateway.Cancel(h) {
		abandonedCounter.Inc(1)
		c.logger.Debug("abandoned operation", "kind", kind, "ref", h, "err", ctx.Err())
		return errors.Wrapf(ctx.Err(), "waiting for %v", kind)
	}
	// Taken by a dispatch, which records its result before returning, or
	// cancelled by Close.
	select {
	case <-stub.Done():
		return nil
	case <-c.done:
		return c.closedWait(h, kind, stub)
	}
}

func (c *Client) closedWait(h Handle, kind callback.Kind, stub waiter) error {
	select {
	case <-stub.Done():
		return nil
	default:
	}
	c.logger.Debug("client closed while waiting", "kind", kind, "ref", h)
	return errors.Wrapf(ErrClosed, "waiting for %v", kind)
}

func statusErr(kind callback.Kind, status callback.Status, msg string) error {
	if status.OK() {
		return nil
	}
	return &StatusError{Op: kind, Status: status, Message: msg}
}

// Balance returns the wallet balance.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	stub := &callback.BalanceStub{}
	h, err := c.GetBalance(stub)
	if err != nil {
		return 0, err
	}
	if err := c.wait(ctx, h, callback.KindBalanceAvailable, stub); err != nil {
		return 0, err
	}
	if err := statusErr(callback.KindBalanceAvailable, stub.Status, stub.Info); err != nil {
		return 0, err
	}
	return stub.Value, nil
}

// MintNonce returns the wallet's mint nonce.
func (c *Client) MintNonce(ctx context.Context) (int64, error) {
	stub := &callback.BalanceStub{}
	h, err := c.GetMintNonce(stub)
	if err != nil {
		return 0, err
	}
	if err := c.wait(ctx, h, callback.KindMintNonceAvailable, stub); err != nil {
		return 0, err
	}
	if err := statusErr(callback.KindMintNonceAvailable, stub.Status, stub.Info); err != nil {
		return 0, err
	}
	return stub.Value, nil
}

// Nonce returns the wallet nonce.
func (c *Client) Nonce(ctx context.Context) (int64, error) {
	stub := &callback.NonceStub{}
	h, err := c.GetNonce(stub)
	if err != nil {
		return 0, err
	}
	if err := c.wait(ctx, h, callback.KindNonceAvailable, stub); err != nil {
		return 0, err
	}
	if err := statusErr(callback.KindNonceAvailable, stub.Status, stub.Info); err != nil {
		return 0, err
	}
	return stub.Nonce, nil
}

// Info returns the JSON document of info query op.
func (c *Client) Info(ctx context.Context, op int) (string, error) {
	stub := &callback.InfoStub{}
	h, err := c.GetInfo(op, stub)
	if err != nil {
		return "", err
	}
	if err := c.wait(ctx, h, callback.KindInfoAvailable, stub); err != nil {
		return "", err
	}
	if err := statusErr(callback.KindInfoAvailable, stub.Status, stub.Err); err != nil {
		return "", err
	}
	return stub.Info, nil
}

// Auth runs split-key auth setup.
func (c *Client) Auth(ctx context.Context) error {
	stub := &callback.AuthStub{}
	h, err := c.SetupAuth(stub)
	if err != nil {
		return err
	}
	if err := c.wait(ctx, h, callback.KindSetupComplete, stub); err != nil {
		return err
	}
	return statusErr(callback.KindSetupComplete, stub.Status, stub.Err)
}

// NewWallet creates a wallet and returns its JSON encoding.
func (c *Client) NewWallet(ctx context.Context) (string, error) {
	stub := &callback.WalletStub{}
	h, err := c.CreateWallet(stub)
	if err != nil {
		return "", err
	}
	if err := c.wait(ctx, h, callback.KindWalletCreateComplete, stub); err != nil {
		return "", err
	}
	if err := statusErr(callback.KindWalletCreateComplete, stub.Status, stub.Err); err != nil {
		return "", err
	}
	return stub.Wallet, nil
}

// BurnTickets returns the not yet processed burn tickets of ethAddress from
// startNonce on.
func (c *Client) BurnTickets(ctx context.Context, ethAddress string, startNonce int64) (callback.BurnTickets, error) {
	stub := &callback.BurnTicketsStub{}
	h, err := c.GetNotProcessedZCNBurnTickets(ethAddress, startNonce, stub)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, h, callback.KindBurnTicketsAvailable, stub); err != nil {
		return nil, err
	}
	if err := statusErr(callback.KindBurnTicketsAvailable, stub.Status, stub.Info); err != nil {
		return nil, err
	}
	return stub.Value, nil
}
