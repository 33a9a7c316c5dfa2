package domain

// RejectReason is a typed, expected validation outcome. Rejections are
// control flow, not errors.
type RejectReason string

const (
	RejectNone                RejectReason = ""
	RejectNotRouter           RejectReason = "not_router"
	RejectUnknownSelector     RejectReason = "unknown_selector"
	RejectMalformedCalldata   RejectReason = "malformed_calldata"
	RejectShortPath           RejectReason = "short_path"
	RejectBlacklisted         RejectReason = "blacklisted"
	RejectIlliquid            RejectReason = "illiquid"
	RejectTooDeep             RejectReason = "too_deep"
	RejectVictimTooSmall      RejectReason = "victim_too_small"
	RejectUnprofitable        RejectReason = "unprofitable"
	RejectLowConfidence       RejectReason = "low_confidence"
	RejectUnexecutableGas     RejectReason = "unexecutable_gas"
	RejectDeadlinePassed      RejectReason = "deadline_passed"
	RejectGasTooHigh          RejectReason = "gas_too_high"
	RejectExpired             RejectReason = "expired"
	RejectDuplicate           RejectReason = "duplicate"
	RejectCapacity            RejectReason = "capacity"
	RejectReservesUnavailable RejectReason = "reserves_unavailable"
	RejectPaused              RejectReason = "paused"
	RejectDegraded            RejectReason = "degraded"
	RejectDispatchFailed      RejectReason = "dispatch_failed"
)

// AllRejectReasons lists every non-empty reason, used to pre-register
// metric label values.
var AllRejectReasons = []RejectReason{
	RejectNotRouter, RejectUnknownSelector, RejectMalformedCalldata,
	RejectShortPath, RejectBlacklisted, RejectIlliquid, RejectTooDeep,
	RejectVictimTooSmall, RejectUnprofitable, RejectLowConfidence,
	RejectUnexecutableGas, RejectDeadlinePassed, RejectGasTooHigh,
	RejectExpired, RejectDuplicate, RejectCapacity,
	RejectReservesUnavailable, RejectPaused, RejectDegraded,
	RejectDispatchFailed,
}
