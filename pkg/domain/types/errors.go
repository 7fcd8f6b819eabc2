package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classifying every failure the engine can produce. The HTTP
// surface maps tags to status codes in errutil.
var (
	// ErrTagAuth marks upstream credential or token failures
	ErrTagAuth = goerr.NewTag("auth")

	// ErrTagAPI marks non-zero upstream application codes other than auth
	ErrTagAPI = goerr.NewTag("api")

	// ErrTagRateLimit marks upstream code 45009 after retry exhaustion,
	// and locally throttled manual triggers
	ErrTagRateLimit = goerr.NewTag("rate_limit")

	// ErrTagTransform marks approval-detail parse or reshape failures
	ErrTagTransform = goerr.NewTag("transform")

	// ErrTagCrypto marks signature, padding, key, or recipient failures
	ErrTagCrypto = goerr.NewTag("crypto")

	// ErrTagStore marks disk read/write failures of the persisted documents
	ErrTagStore = goerr.NewTag("store")

	// ErrTagLockBusy marks a sync already in progress
	ErrTagLockBusy = goerr.NewTag("lock_busy")

	// ErrTagRange marks invalid or over-31-day query windows
	ErrTagRange = goerr.NewTag("range")
)

// Context keys for error values
const (
	SpNoKey         = "sp_no"
	UserIDKey       = "userid"
	UpstreamCodeKey = "upstream_code"
	CryptoSubKey    = "crypto_subcode"
)
