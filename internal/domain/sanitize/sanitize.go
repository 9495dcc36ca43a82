// Package sanitize implements the privacy transformation applied to events
// before they are persisted or transmitted in privacy mode.
package sanitize

import (
	"strings"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/taxonomy"
)

// forbiddenKeyPatterns catches privacy-sensitive property names regardless
// of taxonomy membership. The allowlist is the primary control; this scan is
// an independent second layer that catches taxonomy authoring mistakes
// (free-text, identity and contact-detail shaped names).
var forbiddenKeyPatterns = []string{
	"name",
	"email",
	"phone",
	"address",
	"text",
	"note",
	"title",
	"query",
	"content",
	"comment",
	"token",
	"password",
	"user",
	"device",
	"location",
	"latitude",
	"longitude",
	"ip",
}

// Event returns a sanitized copy of the event. The input is not modified.
//
// Three steps, in order: drop props not allowlisted for the event name, drop
// surviving props with privacy-sensitive key names, and replace the absolute
// timestamp (if any) with day-of-week and hour-of-day buckets while removing
// stable identifiers. The result is always in the privacy shape.
//
// Sanitization is idempotent. Events can legitimately pass through twice:
// once at creation when privacy mode was already active, and again at flush
// time when privacy mode was enabled after the event was queued.
func Event(ev entities.Event, reg *taxonomy.Registry) entities.Event {
	out := ev
	out.Props = allowlistProps(ev.Name, ev.Props, reg)

	if out.OccurredAt != nil {
		day, hour := entities.CoarsenTime(*out.OccurredAt)
		out.DayOfWeek = &day
		out.HourOfDay = &hour
		out.OccurredAt = nil
	}
	out.UserID = ""
	out.DeviceID = ""
	out.Mode = entities.ModePrivacy

	return out
}

// KeyForbidden reports whether a property key matches the sensitive-name
// patterns. Matching is case-insensitive substring containment.
func KeyForbidden(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range forbiddenKeyPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// allowlistProps keeps only keys that are both allowlisted for the event
// name and free of forbidden patterns. Unregistered event names keep no
// props at all.
func allowlistProps(name string, props map[string]any, reg *taxonomy.Registry) map[string]any {
	if len(props) == 0 {
		return nil
	}
	allowed := reg.AllowedKeys(name)
	if allowed == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for key, value := range props {
		if _, ok := allowed[key]; !ok {
			continue
		}
		if KeyForbidden(key) {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
