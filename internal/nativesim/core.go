// Package nativesim is an in-process stand-in for the native wallet core.
//
// Operations are accepted synchronously and complete later on a goroutine
// locked to its own OS thread, the way the native core completes them on its
// worker threads. Faults can be injected per operation kind to exercise
// refusal, lost completions, duplicates and corrupt payloads.
package nativesim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/handles"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

var (
	// ErrConfig is returned for an invalid Config.
	ErrConfig = errors.New("nativesim: invalid configuration")

	// ErrRefused is returned when a FaultRefuse operation is started.
	ErrRefused = errors.New("nativesim: operation refused")

	// ErrClosed is returned when an operation is started after Close.
	ErrClosed = errors.New("nativesim: core closed")
)

// Sink receives completions. *dispatch.Gateway implements it.
type Sink interface {
	OnSetupComplete(ref handles.Handle, status int32, errMsg marshal.NativeString) error
	OnBalanceAvailable(ref handles.Handle, status int32, value int64, info marshal.NativeString) error
	OnInfoAvailable(ref handles.Handle, op int32, status int32, info, errMsg marshal.NativeString) error
	OnMintNonceAvailable(ref handles.Handle, status int32, value int64, info marshal.NativeString) error
	OnNonceAvailable(ref handles.Handle, status int32, nonce int64, info marshal.NativeString) error
	OnBurnTicketsAvailable(ref handles.Handle, status int32, tickets []byte, info marshal.NativeString) error
	OnWalletCreateComplete(ref handles.Handle, status int32, wallet, errMsg marshal.NativeString) error
}

// Fault is an injected misbehaviour.
type Fault uint8

const (
	FaultNone Fault = iota
	// FaultRefuse makes the start call fail.
	FaultRefuse
	// FaultDrop accepts the operation and never completes it.
	FaultDrop
	// FaultCorrupt completes with a payload that cannot be marshalled.
	FaultCorrupt
	// FaultStatus completes with the status and message set by SetFailure.
	FaultStatus
)

// Stats counts completions by outcome as reported by the sink.
type Stats struct {
	Started      int64
	Delivered    int64
	NotDelivered int64
}

// Wallet is the simulated wallet state.
type Wallet struct {
	ClientID  string               `json:"client_id"`
	ClientKey string               `json:"client_key"`
	Balance   int64                `json:"-"`
	Nonce     int64                `json:"-"`
	MintNonce int64                `json:"-"`
	Tickets   callback.BurnTickets `json:"-"`
}

// Core is the simulated native core.
type Core struct {
	cfg    Config
	enc    marshal.Encoding
	sink   Sink
	logger log.Logger

	mu       sync.Mutex
	wallet   Wallet
	info     map[int]string
	faults   map[callback.Kind]Fault
	failures map[callback.Kind]failure
	closed   bool
	rng      *rand.Rand

	inflight     sync.WaitGroup
	started      atomic.Int64
	delivered    atomic.Int64
	notDelivered atomic.Int64
}

type failure struct {
	status callback.Status
	msg    string
}

// New returns a core delivering completions to sink.
func New(cfg Config, sink Sink) (*Core, error) {
	enc, err := cfg.StringEncoding()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %q", err, cfg.Encoding)
	}
	if cfg.Latency < 0 || cfg.Jitter < 0 || cfg.Duplicates < 0 {
		return nil, fmt.Errorf("%w: negative latency, jitter or duplicates", ErrConfig)
	}
	return &Core{
		cfg:      cfg,
		enc:      enc,
		sink:     sink,
		logger:   log.New("module", "nativesim"),
		info:     map[int]string{},
		faults:   map[callback.Kind]Fault{},
		failures: map[callback.Kind]failure{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// SetWallet replaces the wallet state.
func (c *Core) SetWallet(w Wallet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = w
}

// Wallet returns the wallet state.
func (c *Core) Wallet() Wallet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallet
}

// SetInfo sets the JSON document returned for info query op.
func (c *Core) SetInfo(op int, doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info[op] = doc
}

// Inject sets the fault for every later operation of kind.
func (c *Core) Inject(kind callback.Kind, f Fault) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f == FaultNone {
		delete(c.faults, kind)
		return
	}
	c.faults[kind] = f
}

// SetFailure sets the status and message used by FaultStatus for kind.
func (c *Core) SetFailure(kind callback.Kind, status callback.Status, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[kind] = failure{status: status, msg: msg}
	c.faults[kind] = FaultStatus
}

// Wait blocks until every accepted operation has completed or been dropped.
func (c *Core) Wait() {
	c.inflight.Wait()
}

// Close refuses later operations and waits for in-flight ones.
func (c *Core) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inflight.Wait()
}

// Stats returns the completion counters.
func (c *Core) Stats() Stats {
	return Stats{
		Started:      c.started.Load(),
		Delivered:    c.delivered.Load(),
		NotDelivered: c.notDelivered.Load(),
	}
}

// begin checks faults and schedules deliver on a worker thread. deliver is
// called once per delivery with the fault in effect.
func (c *Core) begin(kind callback.Kind, ref handles.Handle, deliver func(Fault, failure) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	fault := c.faults[kind]
	fail := c.failures[kind]
	delay := c.cfg.Latency
	if c.cfg.Jitter > 0 {
		delay += time.Duration(c.rng.Int63n(int64(c.cfg.Jitter)))
	}
	c.mu.Unlock()

	switch fault {
	case FaultRefuse:
		return fmt.Errorf("%w: %v", ErrRefused, kind)
	case FaultDrop:
		c.started.Add(1)
		c.logger.Debug("dropping operation", "kind", kind, "ref", ref)
		return nil
	}

	c.started.Add(1)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		time.Sleep(delay)
		for i := 0; i <= c.cfg.Duplicates; i++ {
			if err := deliver(fault, fail); err != nil {
				c.notDelivered.Add(1)
				c.logger.Trace("completion not delivered", "kind", kind, "ref", ref, "err", err)
			} else {
				c.delivered.Add(1)
			}
		}
	}()
	return nil
}

func (c *Core) str(s string) marshal.NativeString {
	return marshal.Encode(s, c.enc)
}

// corrupt returns a string that is invalid in the configured encoding.
func (c *Core) corrupt() marshal.NativeString {
	switch c.enc {
	case marshal.UTF16LE:
		return marshal.NativeString{Data: []byte{0x00, 0xDC}, Encoding: c.enc}
	default:
		return marshal.NativeString{Data: []byte{0xff, 0xfe}, Encoding: c.enc}
	}
}

func statusOf(fault Fault, fail failure) (int32, string) {
	if fault == FaultStatus {
		return int32(fail.status), fail.msg
	}
	return int32(callback.StatusSuccess), ""
}

// GetBalance starts a balance query.
func (c *Core) GetBalance(ref handles.Handle) error {
	return c.begin(callback.KindBalanceAvailable, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		info := c.str(msg)
		if fault == FaultCorrupt {
			info = c.corrupt()
		}
		w := c.Wallet()
		if status != 0 {
			w.Balance = 0
		}
		return c.sink.OnBalanceAvailable(ref, status, w.Balance, info)
	})
}

// GetMintNonce starts a mint nonce query.
func (c *Core) GetMintNonce(ref handles.Handle) error {
	return c.begin(callback.KindMintNonceAvailable, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		info := c.str(msg)
		if fault == FaultCorrupt {
			info = c.corrupt()
		}
		return c.sink.OnMintNonceAvailable(ref, status, c.Wallet().MintNonce, info)
	})
}

// GetNonce starts a nonce query.
func (c *Core) GetNonce(ref handles.Handle) error {
	return c.begin(callback.KindNonceAvailable, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		info := c.str(msg)
		if fault == FaultCorrupt {
			info = c.corrupt()
		}
		return c.sink.OnNonceAvailable(ref, status, c.Wallet().Nonce, info)
	})
}

// GetInfo starts info query op.
func (c *Core) GetInfo(op int, ref handles.Handle) error {
	return c.begin(callback.KindInfoAvailable, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		c.mu.Lock()
		doc, ok := c.info[op]
		c.mu.Unlock()
		if !ok && status == 0 {
			status, msg = int32(callback.StatusError), fmt.Sprintf("no info for op %d", op)
		}
		if status != 0 {
			doc = ""
		}
		errMsg := c.str(msg)
		if fault == FaultCorrupt {
			errMsg = c.corrupt()
		}
		return c.sink.OnInfoAvailable(ref, int32(op), status, c.str(doc), errMsg)
	})
}

// SetupAuth starts split-key auth setup.
func (c *Core) SetupAuth(ref handles.Handle) error {
	return c.begin(callback.KindSetupComplete, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		errMsg := c.str(msg)
		if fault == FaultCorrupt {
			errMsg = c.corrupt()
		}
		return c.sink.OnSetupComplete(ref, status, errMsg)
	})
}

// CreateWallet starts wallet creation. A successful creation replaces the
// wallet's client id and key.
func (c *Core) CreateWallet(ref handles.Handle) error {
	return c.begin(callback.KindWalletCreateComplete, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		if status != 0 {
			return c.sink.OnWalletCreateComplete(ref, status, c.str(""), c.str(msg))
		}
		if fault == FaultCorrupt {
			return c.sink.OnWalletCreateComplete(ref, status, c.corrupt(), c.str(""))
		}
		c.mu.Lock()
		c.wallet.ClientID = uuid.NewString()
		c.wallet.ClientKey = uuid.NewString()
		w := c.wallet
		c.mu.Unlock()
		doc, err := json.Marshal(w)
		if err != nil {
			return c.sink.OnWalletCreateComplete(ref, int32(callback.StatusError), c.str(""), c.str(err.Error()))
		}
		return c.sink.OnWalletCreateComplete(ref, status, c.str(string(doc)), c.str(""))
	})
}

// GetNotProcessedZCNBurnTickets starts a query for burn tickets of
// ethAddress with nonce at or above startNonce.
func (c *Core) GetNotProcessedZCNBurnTickets(ethAddress string, startNonce int64, ref handles.Handle) error {
	return c.begin(callback.KindBurnTicketsAvailable, ref, func(fault Fault, fail failure) error {
		status, msg := statusOf(fault, fail)
		if fault == FaultCorrupt {
			return c.sink.OnBurnTicketsAvailable(ref, status, []byte{0, 0, 0, 1, 0xff}, c.str(msg))
		}
		c.logger.Debug("querying burn tickets", "eth", ethAddress, "start", startNonce, "ref", ref)
		var out callback.BurnTickets
		if status == 0 {
			for _, t := range c.Wallet().Tickets {
				if t.Nonce >= startNonce {
					out = append(out, t)
				}
			}
		}
		var buf []byte
		var err error
		if c.cfg.TicketsJSON {
			if out == nil {
				out = callback.BurnTickets{}
			}
			buf, err = json.Marshal(out)
		} else {
			buf, err = marshal.EncodeTickets(out)
		}
		if err != nil {
			return c.sink.OnBurnTicketsAvailable(ref, int32(callback.StatusError), nil, c.str(err.Error()))
		}
		return c.sink.OnBurnTicketsAvailable(ref, status, buf, c.str(msg))
	})
}
