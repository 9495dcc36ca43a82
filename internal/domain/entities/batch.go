package entities

// SchemaVersion identifies the delivery wire format.
const SchemaVersion = 1

// Batch is the payload of one delivery attempt. Mode tells the collector
// which event shape to expect.
type Batch struct {
	SchemaVersion int     `json:"schema_version"`
	Mode          Mode    `json:"mode"`
	Events        []Event `json:"events"`
}

// SendResult classifies the outcome of one delivery attempt. Exactly one of
// three cases holds: success (remove the batch from the queue), retryable
// failure (increment retry counts, keep the batch queued), or permanent
// failure (remove the batch, delivery is abandoned).
type SendResult struct {
	Success     bool
	ShouldRetry bool
	Err         error
}
