package metrics

// Common metric attribute keys to keep telemetry consistent/searchable.
const (
	AttrMethod         = "method"
	AttrPath           = "path"
	AttrStatus         = "status"
	AttrOrigin         = "origin"
	AttrOutcome        = "outcome"
	AttrSource         = "source"
	AttrRecommendation = "recommendation"
	AttrEntity         = "entity"
	AttrReason         = "reason"
)

// Fetch outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNotModified = "not_modified"
	OutcomeRetry       = "retry"
	OutcomeFailed      = "failed"
	OutcomeDenied      = "denied"
)
