// Package callback defines the operation kinds, status codes and callback
// interfaces shared between the wallet core and Go callers.
//
// A callback target is any Go value implementing the interface that belongs
// to its Kind. Targets are registered with the handle registry and invoked
// exactly once when the native core completes the operation.
package callback

import "fmt"

// Kind identifies which completion an asynchronous wallet operation delivers.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSetupComplete
	KindBalanceAvailable
	KindInfoAvailable
	KindMintNonceAvailable
	KindNonceAvailable
	KindBurnTicketsAvailable
	KindWalletCreateComplete
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{
	KindSetupComplete,
	KindBalanceAvailable,
	KindInfoAvailable,
	KindMintNonceAvailable,
	KindNonceAvailable,
	KindBurnTicketsAvailable,
	KindWalletCreateComplete,
}

var kindNames = [...]string{
	KindInvalid:              "Invalid",
	KindSetupComplete:        "SetupComplete",
	KindBalanceAvailable:     "BalanceAvailable",
	KindInfoAvailable:        "InfoAvailable",
	KindMintNonceAvailable:   "MintNonceAvailable",
	KindNonceAvailable:       "NonceAvailable",
	KindBurnTicketsAvailable: "BurnTicketsAvailable",
	KindWalletCreateComplete: "WalletCreateComplete",
}

// String returns the kind name, e.g. "BalanceAvailable".
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && k <= KindWalletCreateComplete
}

// EntryPoint returns the name of the native entry point delivering this kind,
// e.g. "OnBalanceAvailable".
func (k Kind) EntryPoint() string {
	return "On" + k.String()
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == name {
			return k, true
		}
	}
	return KindInvalid, false
}
