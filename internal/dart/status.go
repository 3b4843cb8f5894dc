package dart

// Provider status codes carried inside response bodies. These are domain
// outcomes, distinct from HTTP status codes, and each maps to a specific
// wait/abort policy in the polling loop.
const (
	StatusOK          = "000"
	StatusNoData      = "013" // terminal for the cycle, not an error
	StatusRateLimited = "020" // daily quota exhausted, long sleep
	StatusMaintenance = "800" // provider maintenance window, short sleep
	StatusInvalidKey  = "010"
	StatusDisabledKey = "011"
	StatusExpiredKey  = "901"
)

// noRetryDocumentStatuses are envelope statuses on the document endpoint
// that mean the document will never appear: retrying is pointless but the
// condition is clean, not fatal.
var noRetryDocumentStatuses = map[string]struct{}{
	StatusNoData: {}, // no data found
	"014":        {}, // file missing
	"100":        {}, // bad field value
}

// IsKeyStatus reports whether the status indicates an API key problem
// (invalid, disabled or expired). These are the fatal-class conditions the
// orchestrator answers with a full-interval backoff.
func IsKeyStatus(status string) bool {
	switch status {
	case StatusInvalidKey, StatusDisabledKey, StatusExpiredKey:
		return true
	}
	return false
}
