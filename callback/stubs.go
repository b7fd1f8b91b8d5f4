package callback

import (
	"context"
	"sync"
)

// completion is embedded by every stub. It closes done on the first
// completion and ignores later ones.
type completion struct {
	once sync.Once
	done chan struct{}
	init sync.Once
}

func (c *completion) ch() chan struct{} {
	c.init.Do(func() {
		c.done = make(chan struct{})
	})
	return c.done
}

// finish runs record exactly once and then releases waiters.
func (c *completion) finish(record func()) {
	ch := c.ch()
	c.once.Do(func() {
		record()
		close(ch)
	})
}

// Done returns a channel closed once the stub received its result.
func (c *completion) Done() <-chan struct{} {
	return c.ch()
}

// Wait blocks until the stub receives its result or ctx is done.
func (c *completion) Wait(ctx context.Context) error {
	select {
	case <-c.ch():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BalanceStub implements GetBalanceCallback and GetMintNonceCallback.
type BalanceStub struct {
	completion

	Status Status
	Value  int64
	Info   string
}

func (cb *BalanceStub) OnBalanceAvailable(status int, value int64, info string) {
	cb.finish(func() {
		cb.Status = Status(status)
		cb.Value = value
		cb.Info = info
	})
}

// NonceStub implements GetNonceCallback.
type NonceStub struct {
	completion

	Status Status
	Nonce  int64
	Info   string
}

func (cb *NonceStub) OnNonceAvailable(status int, nonce int64, info string) {
	cb.finish(func() {
		cb.Status = Status(status)
		cb.Nonce = nonce
		cb.Info = info
	})
}

// InfoStub implements GetInfoCallback.
type InfoStub struct {
	completion

	Op     int
	Status Status
	Info   string
	Err    string
}

func (cb *InfoStub) OnInfoAvailable(op int, status int, info string, err string) {
	cb.finish(func() {
		cb.Op = op
		cb.Status = Status(status)
		cb.Info = info
		cb.Err = err
	})
}

// AuthStub implements AuthCallback.
type AuthStub struct {
	completion

	Status Status
	Err    string
}

func (cb *AuthStub) OnSetupComplete(status int, err string) {
	cb.finish(func() {
		cb.Status = Status(status)
		cb.Err = err
	})
}

// WalletStub implements WalletCallback.
type WalletStub struct {
	completion

	Status Status
	Wallet string
	Err    string
}

func (cb *WalletStub) OnWalletCreateComplete(status int, wallet string, err string) {
	cb.finish(func() {
		cb.Status = Status(status)
		cb.Wallet = wallet
		cb.Err = err
	})
}

// BurnTicketsStub implements GetNotProcessedZCNBurnTicketsCallback.
type BurnTicketsStub struct {
	completion

	Status Status
	Value  BurnTickets
	Info   string
}

func (cb *BurnTicketsStub) OnBalanceAvailable(status int, value BurnTickets, info string) {
	cb.finish(func() {
		cb.Status = Status(status)
		cb.Value = value
		cb.Info = info
	})
}
