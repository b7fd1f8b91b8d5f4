package callback

import "fmt"

// Status is the small integer a wallet operation completes with.
type Status int

// Status codes as reported by the wallet core.
const (
	StatusSuccess          Status = 0
	StatusNetworkError     Status = 1
	StatusError            Status = 2
	StatusRejectedByUser   Status = 3
	StatusInvalidSignature Status = 4
	StatusAuthError        Status = 5
	StatusAuthVerifyFailed Status = 6
	StatusAuthTimeout      Status = 7
	StatusUnknown          Status = -1
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNetworkError:
		return "network error"
	case StatusError:
		return "error"
	case StatusRejectedByUser:
		return "rejected by user"
	case StatusInvalidSignature:
		return "invalid signature"
	case StatusAuthError:
		return "auth error"
	case StatusAuthVerifyFailed:
		return "auth verify failed"
	case StatusAuthTimeout:
		return "auth timeout"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool {
	return s == StatusSuccess
}

// Info operation codes passed back through OnInfoAvailable.
const (
	OpGetTokenLockConfig int = iota
	OpGetLockedTokens
	OpGetUserPools
	OpGetUserPoolDetail
	// storage SC ops
	OpStorageSCGetConfig
	OpStorageSCGetChallengePoolInfo
	OpStorageSCGetAllocation
	OpStorageSCGetAllocations
	OpStorageSCGetReadPoolInfo
	OpStorageSCGetStakePoolInfo
	OpStorageSCGetBlobbers
	OpStorageSCGetBlobber
	OpStorageSCGetTransactions
	OpStorageSCGetSnapshots
	OpStorageSCGetBlobberSnapshots
	OpStorageSCGetMinerSnapshots
	OpStorageSCGetSharderSnapshots
	OpStorageSCGetAuthorizerSnapshots
	OpStorageSCGetValidatorSnapshots
	OpStorageSCGetUserSnapshots
	OpZCNSCGetGlobalConfig
	OpZCNSCGetAuthorizer
	OpZCNSCGetAuthorizerNodes
)
