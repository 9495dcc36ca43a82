package entities

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Mode selects which shape of identity and timing data an event carries.
type Mode string

const (
	// ModeDefault events carry stable identifiers and an absolute timestamp.
	ModeDefault Mode = "default"

	// ModePrivacy events carry only ephemeral identifiers and coarse
	// day-of-week / hour-of-day buckets.
	ModePrivacy Mode = "privacy"
)

// Event represents a single instrumentation record. It is a tagged variant:
// Mode discriminates between the stable shape (OccurredAt, UserID, DeviceID)
// and the privacy shape (DayOfWeek, HourOfDay, AnonID). The two shapes are
// mutually exclusive; Validate rejects mixed events. Events are immutable
// once created except for sanitization, which may rewrite a stable event
// into the privacy shape before it is first persisted or transmitted.
type Event struct {
	Name       string         `json:"event_name"`
	ID         string         `json:"event_id"`
	Mode       Mode           `json:"mode"`
	SessionID  string         `json:"session_id"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
	DayOfWeek  *string        `json:"day_of_week,omitempty"`
	HourOfDay  *int           `json:"hour_of_day,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	AnonID     string         `json:"anon_id,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	AppVersion string         `json:"app_version,omitempty"`
	Platform   string         `json:"platform,omitempty"`
	Locale     string         `json:"locale,omitempty"`
}

// NewStableEvent assembles a default-mode event from an identity snapshot.
func NewStableEvent(name string, identity Identity, props map[string]any, occurredAt time.Time) Event {
	return Event{
		Name:       name,
		ID:         NewEventID(),
		Mode:       ModeDefault,
		SessionID:  identity.SessionID,
		OccurredAt: &occurredAt,
		UserID:     identity.UserID,
		DeviceID:   identity.DeviceID,
		Props:      props,
	}
}

// NewPrivacyEvent assembles a privacy-mode event from an identity snapshot.
// The absolute timestamp is coarsened immediately and never stored.
func NewPrivacyEvent(name string, identity Identity, props map[string]any, occurredAt time.Time) Event {
	day, hour := CoarsenTime(occurredAt)
	return Event{
		Name:      name,
		ID:        NewEventID(),
		Mode:      ModePrivacy,
		SessionID: identity.SessionID,
		DayOfWeek: &day,
		HourOfDay: &hour,
		AnonID:    identity.AnonID,
		Props:     props,
	}
}

// NewEventID generates an opaque unique event identifier from the current
// time and a random suffix.
func NewEventID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// the timestamp alone rather than aborting event creation.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// CoarsenTime buckets an absolute timestamp into its day-of-week and
// hour-of-day components.
func CoarsenTime(t time.Time) (day string, hour int) {
	return t.Weekday().String(), t.Hour()
}

// Validate reports whether the event is well formed for its mode.
func (e *Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event name must be present")
	}
	if e.ID == "" {
		return fmt.Errorf("event id must be present")
	}
	if e.SessionID == "" {
		return fmt.Errorf("session id must be present")
	}
	switch e.Mode {
	case ModeDefault:
		if e.DayOfWeek != nil || e.HourOfDay != nil {
			return fmt.Errorf("default-mode event must not carry time buckets")
		}
		if e.AnonID != "" {
			return fmt.Errorf("default-mode event must not carry an anonymous id")
		}
	case ModePrivacy:
		if e.OccurredAt != nil {
			return fmt.Errorf("privacy-mode event must not carry an absolute timestamp")
		}
		if e.UserID != "" || e.DeviceID != "" {
			return fmt.Errorf("privacy-mode event must not carry stable identifiers")
		}
	default:
		return fmt.Errorf("unknown event mode %q", e.Mode)
	}
	return nil
}
