package entities

// Identity is the identity snapshot attached to events at creation time.
// Stable-mode identities carry DeviceID (and UserID once authenticated);
// privacy-mode identities carry only a daily-rotating AnonID. SessionID is
// always present, though what a "session" spans differs by mode.
type Identity struct {
	Mode      Mode   `json:"mode"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	AnonID    string `json:"anon_id,omitempty"`
}
