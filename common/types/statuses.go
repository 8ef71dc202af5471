package types

// IntentStatus tracks a trade intent through its lifecycle.
type IntentStatus string

const (
	// StatusDraft is the status of an intent that has been hashed and persisted
	// but not yet anchored on-chain.
	StatusDraft IntentStatus = "draft"

	// StatusCommitted is the status of an intent whose hash commitment has been
	// confirmed on-chain.
	StatusCommitted IntentStatus = "committed"

	// StatusRevealed is the status of an intent whose execution transaction has
	// been confirmed and settled.
	StatusRevealed IntentStatus = "revealed"

	// StatusExpired is the status of an intent whose expiry elapsed before it
	// could be revealed.
	StatusExpired IntentStatus = "expired"

	// StatusFailed is the status of an intent that hit an unrecoverable error.
	StatusFailed IntentStatus = "failed"
)

// Terminal reports whether no further transition is possible from the status.
func (s IntentStatus) Terminal() bool {
	switch s {
	case StatusRevealed, StatusExpired, StatusFailed:
		return true
	}
	return false
}
