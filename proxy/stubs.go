package proxy

import (
	"runtime"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

// stub is the shared part of every callback stub. Forwarded strings use
// modified UTF-8, the encoding native callback objects read.
type stub struct {
	object
	kind callback.Kind
}

// Kind returns the completion kind the stub forwards.
func (s *stub) Kind() callback.Kind { return s.kind }

// Release drops the native callback object. Later calls do nothing.
func (s *stub) Release() error {
	// stub is the only field of every stub type, so s addresses the
	// allocation the finalizer was set on.
	runtime.SetFinalizer(s, nil)
	return s.release()
}

func (s *stub) forward(args marshal.Args) {
	if err := s.check(); err != nil {
		s.logger.Warn("dropping completion for released callback stub", "kind", s.kind, "ref", s.ref)
		return
	}
	env, err := marshal.Lower(0, s.kind, args, marshal.ModifiedUTF8)
	if err == nil {
		err = s.backend.Forward(s.ref, env)
	}
	if err != nil {
		s.logger.Error("failed to forward completion to native callback", "kind", s.kind, "ref", s.ref, "err", err)
	}
}

// SetupCompleteCallback forwards auth setup completions.
type SetupCompleteCallback struct{ stub }

func (s *SetupCompleteCallback) OnSetupComplete(status int, err string) {
	s.forward(marshal.Args{Status: callback.Status(status), Err: err})
}

// BalanceAvailableCallback forwards balance completions.
type BalanceAvailableCallback struct{ stub }

func (s *BalanceAvailableCallback) OnBalanceAvailable(status int, value int64, info string) {
	s.forward(marshal.Args{Status: callback.Status(status), Value: value, Info: info})
}

// InfoAvailableCallback forwards info query completions.
type InfoAvailableCallback struct{ stub }

func (s *InfoAvailableCallback) OnInfoAvailable(op int, status int, info string, err string) {
	s.forward(marshal.Args{Op: op, Status: callback.Status(status), Info: info, Err: err})
}

// MintNonceAvailableCallback forwards mint nonce completions.
type MintNonceAvailableCallback struct{ stub }

func (s *MintNonceAvailableCallback) OnBalanceAvailable(status int, value int64, info string) {
	s.forward(marshal.Args{Status: callback.Status(status), Value: value, Info: info})
}

// NonceAvailableCallback forwards nonce completions.
type NonceAvailableCallback struct{ stub }

func (s *NonceAvailableCallback) OnNonceAvailable(status int, nonce int64, info string) {
	s.forward(marshal.Args{Status: callback.Status(status), Value: nonce, Info: info})
}

// BurnTicketsAvailableCallback forwards burn ticket query completions.
type BurnTicketsAvailableCallback struct{ stub }

func (s *BurnTicketsAvailableCallback) OnBalanceAvailable(status int, value callback.BurnTickets, info string) {
	s.forward(marshal.Args{Status: callback.Status(status), Tickets: value, Info: info})
}

// WalletCreateCompleteCallback forwards wallet creation completions.
type WalletCreateCompleteCallback struct{ stub }

func (s *WalletCreateCompleteCallback) OnWalletCreateComplete(status int, wallet string, err string) {
	s.forward(marshal.Args{Status: callback.Status(status), Wallet: wallet, Err: err})
}

type finalizer interface{ finalize() }

// newStub builds the stub type for kind. kind must be valid.
func (f *Factory) newStub(kind callback.Kind, ref Ref) any {
	var (
		out any
		s   *stub
	)
	switch kind {
	case callback.KindSetupComplete:
		p := &SetupCompleteCallback{}
		out, s = p, &p.stub
	case callback.KindBalanceAvailable:
		p := &BalanceAvailableCallback{}
		out, s = p, &p.stub
	case callback.KindInfoAvailable:
		p := &InfoAvailableCallback{}
		out, s = p, &p.stub
	case callback.KindMintNonceAvailable:
		p := &MintNonceAvailableCallback{}
		out, s = p, &p.stub
	case callback.KindNonceAvailable:
		p := &NonceAvailableCallback{}
		out, s = p, &p.stub
	case callback.KindBurnTicketsAvailable:
		p := &BurnTicketsAvailableCallback{}
		out, s = p, &p.stub
	case callback.KindWalletCreateComplete:
		p := &WalletCreateCompleteCallback{}
		out, s = p, &p.stub
	default:
		return nil
	}
	s.init(f, StubClass(kind), ref)
	s.kind = kind
	// The finalizer must not capture s, or the stub stays reachable forever.
	runtime.SetFinalizer(out, func(o any) { o.(finalizer).finalize() })
	return out
}
