package logging

// Standardized structured-log field names. Components should prefer
// these constants over ad-hoc keys so log queries stay stable.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldJobID     = "job_id"
	FieldJobKey    = "job_key"
	FieldStage     = "stage"
	FieldChunk     = "chunk"
	FieldRequestID = "request_id"
	FieldAttempt   = "attempt"
	FieldErrorKind = "error_kind"
)
