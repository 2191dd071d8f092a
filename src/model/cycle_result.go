package model

import "time"

// Cycle states, in pipeline order. A symbol that is vetoed by the risk
// manager goes straight from RISK_CHECK to DONE; any component failure
// moves that symbol alone to FAILED.
const (
	CycleStateFetch     = "FETCH"
	CycleStateSignal    = "SIGNAL"
	CycleStateRiskCheck = "RISK_CHECK"
	CycleStateExecute   = "EXECUTE"
	CycleStatePersist   = "PERSIST"
	CycleStateDone      = "DONE"
	CycleStateFailed    = "FAILED"
	CycleStateSkipped   = "SKIPPED"
)

// CycleResult is the per-symbol outcome of one trading cycle.
type CycleResult struct {
	Symbol      string    `json:"symbol"`
	State       string    `json:"state"`
	Signal      *Signal   `json:"signal,omitempty"`
	Trade       *Trade    `json:"trade,omitempty"`
	Vetoed      bool      `json:"vetoed"`
	VetoReason  string    `json:"veto_reason,omitempty"`
	Degraded    bool      `json:"degraded"`
	FailureStep string    `json:"failure_step,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
