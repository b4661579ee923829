package logging

import "log/slog"

// Common structured log field keys to keep logs searchable/consistent.
const (
	FieldService    = "service"
	FieldVersion    = "version"
	FieldSource     = "source"
	FieldOrigin     = "origin"
	FieldURL        = "url"
	FieldRequestID  = "request_id"
	FieldCycleID    = "cycle_id"
	FieldPath       = "path"
	FieldMethod     = "method"
	FieldStatusCode = "status_code"
	FieldDate       = "date"
	FieldGameID     = "game_id"
	FieldIndex      = "index"
	FieldTaskID     = "task_id"
	FieldCount      = "count"
	FieldNewRows    = "new_rows"
	FieldAttempt    = "attempt"
	FieldDelayMS    = "delay_ms"
	FieldDurationMS = "duration_ms"
)

// WithCommon appends service/version fields when provided.
func WithCommon(attrs []slog.Attr, service, version string) []slog.Attr {
	if service != "" {
		attrs = append(attrs, slog.String(FieldService, service))
	}
	if version != "" {
		attrs = append(attrs, slog.String(FieldVersion, version))
	}
	return attrs
}
