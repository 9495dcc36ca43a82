package entities

import (
	"time"
)

// QueuedEvent wraps an Event with queue bookkeeping. Timestamp is the
// enqueue time and orders compaction; RetryCount counts failed delivery
// attempts for the retry ceiling.
type QueuedEvent struct {
	Event      Event     `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}
