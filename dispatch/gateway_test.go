package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/handles"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

// recordHandler keeps every log record for inspection.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) has(level slog.Level, msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

func newTestGateway(t *testing.T) (*Gateway, *recordHandler) {
	t.Helper()
	h := &recordHandler{}
	return New(handles.New(), WithLogger(log.NewLogger(h))), h
}

type balanceTarget struct {
	mu    sync.Mutex
	calls []marshal.Args
}

func (b *balanceTarget) OnBalanceAvailable(status int, value int64, info string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, marshal.Args{Status: callback.Status(status), Value: value, Info: info})
}

func (b *balanceTarget) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func TestDispatchBalanceDeliversOnce(t *testing.T) {
	g, _ := newTestGateway(t)
	target := &balanceTarget{}
	reg, err := g.Registry().Register(target, callback.KindBalanceAvailable)
	require.NoError(t, err)

	err = g.OnBalanceAvailable(reg.Handle, 0, 1000, marshal.Encode("ok", marshal.UTF8))
	require.NoError(t, err)

	require.Equal(t, []marshal.Args{{Status: callback.StatusSuccess, Value: 1000, Info: "ok"}}, target.calls)
	require.Zero(t, g.Registry().Count())

	err = g.OnBalanceAvailable(reg.Handle, 0, 1000, marshal.Encode("ok", marshal.UTF8))
	require.ErrorIs(t, err, ErrNotDelivered)
	require.Equal(t, 1, target.count())
}

func TestDispatchAfterCancelIsSilent(t *testing.T) {
	g, logs := newTestGateway(t)
	target := &balanceTarget{}
	reg, err := g.Registry().Register(target, callback.KindBalanceAvailable)
	require.NoError(t, err)

	require.True(t, g.Cancel(reg.Handle))
	require.False(t, g.Cancel(reg.Handle))

	err = g.OnBalanceAvailable(reg.Handle, 0, 1, marshal.Encode("late", marshal.UTF8))
	require.ErrorIs(t, err, ErrNotDelivered)
	require.ErrorIs(t, err, handles.ErrNotFound)
	require.Zero(t, target.count())
	require.True(t, logs.has(log.LevelDebug, "dropping completion for unknown or consumed handle"))
}

func TestConcurrentDuplicateDispatchInvokesOnce(t *testing.T) {
	g, _ := newTestGateway(t)
	for round := 0; round < 100; round++ {
		target := &balanceTarget{}
		reg, err := g.Registry().Register(target, callback.KindBalanceAvailable)
		require.NoError(t, err)

		var delivered atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.OnBalanceAvailable(reg.Handle, 0, 7, marshal.Encode("dup", marshal.UTF8)) == nil {
					delivered.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), delivered.Load())
		require.Equal(t, 1, target.count())
	}
}

func TestDispatchRacingCancelExactlyOneOutcome(t *testing.T) {
	g, _ := newTestGateway(t)
	for round := 0; round < 200; round++ {
		target := &balanceTarget{}
		reg, err := g.Registry().Register(target, callback.KindBalanceAvailable)
		require.NoError(t, err)

		var cancelled atomic.Bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = g.OnBalanceAvailable(reg.Handle, 0, 1, marshal.Encode("x", marshal.UTF8))
		}()
		go func() {
			defer wg.Done()
			cancelled.Store(g.Cancel(reg.Handle))
		}()
		wg.Wait()

		dispatched := target.count() == 1
		require.NotEqual(t, dispatched, cancelled.Load(), "round %d: exactly one of dispatched/cancelled", round)
	}
}

func TestDispatchUnknownHandle(t *testing.T) {
	g, _ := newTestGateway(t)
	err := g.OnNonceAvailable(12345, 0, 1, marshal.Encode("", marshal.UTF8))
	require.ErrorIs(t, err, ErrNotDelivered)
}

func TestDispatchKindMismatchKeepsRegistration(t *testing.T) {
	g, logs := newTestGateway(t)
	target := &balanceTarget{}
	reg, err := g.Registry().Register(target, callback.KindBalanceAvailable)
	require.NoError(t, err)

	err = g.OnNonceAvailable(reg.Handle, 0, 1, marshal.Encode("", marshal.UTF8))
	require.ErrorIs(t, err, handles.ErrKindMismatch)
	require.Zero(t, target.count())
	require.True(t, logs.has(log.LevelWarn, "dropping completion of the wrong kind"))

	require.NoError(t, g.OnBalanceAvailable(reg.Handle, 0, 1, marshal.Encode("", marshal.UTF8)))
	require.Equal(t, 1, target.count())
}

func TestDispatchMarshalFailureSynthesizesError(t *testing.T) {
	g, logs := newTestGateway(t)
	stub := &callback.WalletStub{}
	reg, err := g.Registry().Register(stub, callback.KindWalletCreateComplete)
	require.NoError(t, err)

	bad := marshal.NativeString{Data: []byte{0xff, 0xfe}, Encoding: marshal.UTF8}
	require.NoError(t, g.OnWalletCreateComplete(reg.Handle, 0, bad, marshal.Encode("", marshal.UTF8)))

	require.NoError(t, stub.Wait(context.Background()))
	require.Equal(t, callback.StatusError, stub.Status)
	require.Empty(t, stub.Wallet)
	require.Contains(t, stub.Err, "encoding")
	require.True(t, logs.has(log.LevelWarn, "failed to marshal completion, delivering error status"))
}

func TestDispatchMalformedTicketsSynthesizesError(t *testing.T) {
	g, _ := newTestGateway(t)
	stub := &callback.BurnTicketsStub{}
	reg, err := g.Registry().Register(stub, callback.KindBurnTicketsAvailable)
	require.NoError(t, err)

	require.NoError(t, g.OnBurnTicketsAvailable(reg.Handle, 0, []byte{0, 0, 0, 9}, marshal.Encode("", marshal.UTF8)))
	require.Equal(t, callback.StatusError, stub.Status)
	require.Nil(t, stub.Value)
	require.Contains(t, stub.Info, "ticket")
}

func TestDispatchEveryEntryPoint(t *testing.T) {
	g, _ := newTestGateway(t)
	reg := g.Registry()
	u := func(s string) marshal.NativeString { return marshal.Encode(s, marshal.ModifiedUTF8) }

	auth := &callback.AuthStub{}
	r, _ := reg.Register(auth, callback.KindSetupComplete)
	require.NoError(t, g.OnSetupComplete(r.Handle, int32(callback.StatusAuthTimeout), u("timed out")))
	require.Equal(t, callback.StatusAuthTimeout, auth.Status)
	require.Equal(t, "timed out", auth.Err)

	info := &callback.InfoStub{}
	r, _ = reg.Register(info, callback.KindInfoAvailable)
	require.NoError(t, g.OnInfoAvailable(r.Handle, int32(callback.OpStorageSCGetConfig), 0, u(`{"a":1}`), u("")))
	require.Equal(t, callback.OpStorageSCGetConfig, info.Op)
	require.Equal(t, `{"a":1}`, info.Info)

	mint := &callback.BalanceStub{}
	r, _ = reg.Register(mint, callback.KindMintNonceAvailable)
	require.NoError(t, g.OnMintNonceAvailable(r.Handle, 0, 99, u("mint")))
	require.Equal(t, int64(99), mint.Value)

	nonce := &callback.NonceStub{}
	r, _ = reg.Register(nonce, callback.KindNonceAvailable)
	require.NoError(t, g.OnNonceAvailable(r.Handle, 0, 12, u("n")))
	require.Equal(t, int64(12), nonce.Nonce)

	tickets := &callback.BurnTicketsStub{}
	r, _ = reg.Register(tickets, callback.KindBurnTicketsAvailable)
	buf, err := marshal.EncodeTickets(callback.BurnTickets{{Hash: "h", Nonce: 1}})
	require.NoError(t, err)
	require.NoError(t, g.OnBurnTicketsAvailable(r.Handle, 0, buf, u("t")))
	require.Equal(t, callback.BurnTickets{{Hash: "h", Nonce: 1}}, tickets.Value)

	wallet := &callback.WalletStub{}
	r, _ = reg.Register(wallet, callback.KindWalletCreateComplete)
	require.NoError(t, g.OnWalletCreateComplete(r.Handle, 0, u("{}"), u("")))
	require.Equal(t, "{}", wallet.Wallet)

	require.Zero(t, reg.Count())
}

type panicky struct{}

func (panicky) OnNonceAvailable(int, int64, string) { panic("callback exploded") }

func TestDispatchRecoversPanic(t *testing.T) {
	g, logs := newTestGateway(t)
	reg, err := g.Registry().Register(panicky{}, callback.KindNonceAvailable)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.NoError(t, g.OnNonceAvailable(reg.Handle, 0, 1, marshal.Encode("", marshal.UTF8)))
	})
	require.True(t, logs.has(log.LevelError, "callback panicked"))
	require.Zero(t, g.Registry().Count())
}

func TestAttachFailureLeavesRegistration(t *testing.T) {
	h := &recordHandler{}
	attachErr := errors.New("no runtime")
	g := New(handles.New(),
		WithLogger(log.NewLogger(h)),
		WithAttacher(AttacherFunc(func() (func(), error) { return nil, attachErr })))

	target := &balanceTarget{}
	reg, err := g.Registry().Register(target, callback.KindBalanceAvailable)
	require.NoError(t, err)

	err = g.OnBalanceAvailable(reg.Handle, 0, 1, marshal.Encode("", marshal.UTF8))
	require.ErrorIs(t, err, ErrNotDelivered)
	require.Zero(t, target.count())
	require.Equal(t, 1, g.Registry().Count())
}

func TestAttachReleasedAfterCallback(t *testing.T) {
	var attached, released atomic.Int32
	var seenAttached int32
	g := New(handles.New(),
		WithLogger(log.NewLogger(&recordHandler{})),
		WithAttacher(AttacherFunc(func() (func(), error) {
			attached.Add(1)
			return func() { released.Add(1) }, nil
		})))

	target := callbackFunc(func() { seenAttached = attached.Load() - released.Load() })
	reg, err := g.Registry().Register(target, callback.KindSetupComplete)
	require.NoError(t, err)
	require.NoError(t, g.OnSetupComplete(reg.Handle, 0, marshal.Encode("", marshal.UTF8)))

	require.Equal(t, int32(1), seenAttached, "callback must run while attached")
	require.Equal(t, int32(1), attached.Load())
	require.Equal(t, int32(1), released.Load())
}

type callbackFunc func()

func (f callbackFunc) OnSetupComplete(int, string) { f() }
