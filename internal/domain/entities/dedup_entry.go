package entities

import (
	"time"
)

// DedupEntry is a lightweight fingerprint of a logged event, kept only long
// enough to suppress near-duplicate re-sends (retry-induced duplicates,
// double-taps). It is not a permanent ledger.
type DedupEntry struct {
	EventID     string    `json:"event_id"`
	IdentityKey string    `json:"identity_key"`
	EventName   string    `json:"event_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// Matches reports whether the entry fingerprints the same logical event.
func (d DedupEntry) Matches(other DedupEntry) bool {
	return d.EventID == other.EventID &&
		d.IdentityKey == other.IdentityKey &&
		d.EventName == other.EventName
}
