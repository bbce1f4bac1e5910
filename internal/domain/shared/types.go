package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EffectType names a side effect scheduled against an external collaborator
type EffectType string

const (
	EffectLedgerUpdateCostCenter EffectType = "ledger.update_cost_center"
)

// MatchAction is the recommendation produced by transaction matching
type MatchAction string

const (
	MatchActionAutoReconcile MatchAction = "auto_reconcile"
	MatchActionNeedsReview   MatchAction = "needs_review"
	MatchActionNoMatch       MatchAction = "no_match"
)
