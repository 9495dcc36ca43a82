// Package taxonomy is the compiled-in registry of event names the host
// application may log, with the allowlisted property keys for each. The
// registry is a static lookup table: it carries no state and is never
// negotiated at runtime.
package taxonomy

// Event names. The set is closed; Log calls with any other name are dropped.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"

	EventAppForegrounded = "app_foregrounded"
	EventAppBackgrounded = "app_backgrounded"

	EventScreenViewed = "screen_viewed"

	EventCalendarEntryCreated   = "calendar_entry_created"
	EventCalendarEntryCompleted = "calendar_entry_completed"
	EventReminderFired          = "reminder_fired"

	EventNoteCreated  = "note_created"
	EventNoteArchived = "note_archived"

	EventBudgetEntryAdded    = "budget_entry_added"
	EventBudgetLimitExceeded = "budget_limit_exceeded"

	EventContactAdded  = "contact_added"
	EventContactMerged = "contact_merged"

	EventSearchPerformed = "search_performed"
	EventSyncCompleted   = "sync_completed"
	EventExportGenerated = "export_generated"
	EventSettingsChanged = "settings_changed"
	EventErrorDisplayed  = "error_displayed"

	EventPrivacyModeEnabled  = "privacy_mode_enabled"
	EventPrivacyModeDisabled = "privacy_mode_disabled"
)

// Definition describes the closed property schema for one event name.
// Every key present in a persisted or transmitted event's props must appear
// in RequiredProps or OptionalProps; the sanitizer enforces this because
// props arrive as loosely typed call-site data.
type Definition struct {
	Name          string
	RequiredProps []string
	OptionalProps []string
}

// Registry maps event names to their definitions.
type Registry struct {
	definitions map[string]Definition
}

// Default returns the registry for the current host application build.
func Default() *Registry {
	return NewRegistry(definitions)
}

// NewRegistry builds a registry from a definition list. Primarily useful in
// tests; production code uses Default.
func NewRegistry(defs []Definition) *Registry {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		m[d.Name] = d
	}
	return &Registry{definitions: m}
}

// Definition looks up the definition for an event name.
func (r *Registry) Definition(name string) (Definition, bool) {
	d, ok := r.definitions[name]
	return d, ok
}

// IsRegistered reports whether the event name is part of the taxonomy.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.definitions[name]
	return ok
}

// AllowedKeys returns the union of required and optional property keys for
// an event name, or nil for unregistered names.
func (r *Registry) AllowedKeys(name string) map[string]struct{} {
	d, ok := r.definitions[name]
	if !ok {
		return nil
	}
	keys := make(map[string]struct{}, len(d.RequiredProps)+len(d.OptionalProps))
	for _, k := range d.RequiredProps {
		keys[k] = struct{}{}
	}
	for _, k := range d.OptionalProps {
		keys[k] = struct{}{}
	}
	return keys
}

// Names returns all registered event names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	return names
}

// All property values are pre-bucketed scalars: never free text, never raw
// timestamps, never PII. Bucketed count props use ranges like "1-5"/"6-20";
// duration props use coarse labels like "under_1m"/"1m-10m"/"over_10m".
var definitions = []Definition{
	{
		Name:          EventSessionStart,
		RequiredProps: []string{"launch_type"},
		OptionalProps: []string{"days_since_install_bucket"},
	},
	{
		Name:          EventSessionEnd,
		RequiredProps: []string{"session_duration_bucket"},
		OptionalProps: []string{"screens_viewed_bucket"},
	},
	{
		Name:          EventAppForegrounded,
		RequiredProps: nil,
		OptionalProps: []string{"background_duration_bucket"},
	},
	{
		Name:          EventAppBackgrounded,
		RequiredProps: nil,
		OptionalProps: []string{"foreground_duration_bucket"},
	},
	{
		Name:          EventScreenViewed,
		RequiredProps: []string{"screen"},
		OptionalProps: []string{"source", "dwell_bucket"},
	},
	{
		Name:          EventCalendarEntryCreated,
		RequiredProps: []string{"entry_type"},
		OptionalProps: []string{"has_reminder", "recurrence", "lead_time_bucket"},
	},
	{
		Name:          EventCalendarEntryCompleted,
		RequiredProps: []string{"entry_type"},
		OptionalProps: []string{"completion_delay_bucket"},
	},
	{
		Name:          EventReminderFired,
		RequiredProps: []string{"entry_type"},
		OptionalProps: []string{"acknowledged"},
	},
	{
		Name:          EventNoteCreated,
		RequiredProps: nil,
		OptionalProps: []string{"length_bucket", "has_attachment", "via_template"},
	},
	{
		Name:          EventNoteArchived,
		RequiredProps: nil,
		OptionalProps: []string{"age_bucket"},
	},
	{
		Name:          EventBudgetEntryAdded,
		RequiredProps: []string{"category"},
		OptionalProps: []string{"amount_bucket", "is_recurring"},
	},
	{
		Name:          EventBudgetLimitExceeded,
		RequiredProps: []string{"category"},
		OptionalProps: []string{"overage_bucket"},
	},
	{
		Name:          EventContactAdded,
		RequiredProps: nil,
		OptionalProps: []string{"source", "field_count_bucket"},
	},
	{
		Name:          EventContactMerged,
		RequiredProps: nil,
		OptionalProps: []string{"merged_count_bucket"},
	},
	{
		Name:          EventSearchPerformed,
		RequiredProps: []string{"scope"},
		OptionalProps: []string{"result_count_bucket", "term_length_bucket"},
	},
	{
		Name:          EventSyncCompleted,
		RequiredProps: []string{"status"},
		OptionalProps: []string{"duration_bucket", "item_count_bucket"},
	},
	{
		Name:          EventExportGenerated,
		RequiredProps: []string{"format"},
		OptionalProps: []string{"module", "size_bucket"},
	},
	{
		Name:          EventSettingsChanged,
		RequiredProps: []string{"setting"},
		OptionalProps: nil,
	},
	{
		Name:          EventErrorDisplayed,
		RequiredProps: []string{"error_code"},
		OptionalProps: []string{"screen"},
	},
	{
		Name:          EventPrivacyModeEnabled,
		RequiredProps: nil,
		OptionalProps: nil,
	},
	{
		Name:          EventPrivacyModeDisabled,
		RequiredProps: nil,
		OptionalProps: nil,
	},
}
