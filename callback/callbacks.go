package callback

// WalletCallback needs to be implemented for wallet creation.
type WalletCallback interface {
	OnWalletCreateComplete(status int, wallet string, err string)
}

// GetBalanceCallback receives the result of a balance query.
type GetBalanceCallback interface {
	OnBalanceAvailable(status int, value int64, info string)
}

// GetMintNonceCallback receives the result of a mint nonce query. The method
// set matches GetBalanceCallback; the registration kind tells them apart.
type GetMintNonceCallback interface {
	OnBalanceAvailable(status int, value int64, info string)
}

// GetNonceCallback receives the result of a nonce query.
type GetNonceCallback interface {
	OnNonceAvailable(status int, nonce int64, info string)
}

// GetInfoCallback receives the result of an info query.
type GetInfoCallback interface {
	// OnInfoAvailable is called once the query completes.
	// If status == StatusSuccess info is valid, otherwise err gives the reason.
	OnInfoAvailable(op int, status int, info string, err string)
}

// AuthCallback receives the status of the two factor authenticator setup.
type AuthCallback interface {
	OnSetupComplete(status int, err string)
}

// GetNotProcessedZCNBurnTicketsCallback receives the burn tickets not yet
// processed for an ethereum address.
type GetNotProcessedZCNBurnTicketsCallback interface {
	OnBalanceAvailable(status int, value BurnTickets, info string)
}

// BurnTicket is a single burn ticket as reported by sharders.
type BurnTicket struct {
	Hash  string `json:"hash"`
	Nonce int64  `json:"nonce"`
}

// BurnTickets is the list delivered to GetNotProcessedZCNBurnTicketsCallback.
type BurnTickets []BurnTicket

// Implements reports whether target can receive completions of kind.
func Implements(target any, kind Kind) bool {
	if target == nil {
		return false
	}
	switch kind {
	case KindSetupComplete:
		_, ok := target.(AuthCallback)
		return ok
	case KindBalanceAvailable:
		_, ok := target.(GetBalanceCallback)
		return ok
	case KindInfoAvailable:
		_, ok := target.(GetInfoCallback)
		return ok
	case KindMintNonceAvailable:
		_, ok := target.(GetMintNonceCallback)
		return ok
	case KindNonceAvailable:
		_, ok := target.(GetNonceCallback)
		return ok
	case KindBurnTicketsAvailable:
		_, ok := target.(GetNotProcessedZCNBurnTicketsCallback)
		return ok
	case KindWalletCreateComplete:
		_, ok := target.(WalletCallback)
		return ok
	}
	return false
}
