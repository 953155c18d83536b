package models

import (
	"encoding/json"
	"time"
)

// ExecutionResult is the outcome of routing a query through a cache layer.
type ExecutionResult struct {
	Data   json.RawMessage `json:"data"`
	WasHit bool            `json:"was_hit"`
}

// Outcome is what a successful submission hands back for rendering.
type Outcome struct {
	Result    ExecutionResult `json:"result"`
	Elapsed   time.Duration   `json:"elapsed"`
	Mode      Mode            `json:"mode"`
	TypeLabel string          `json:"type_label"`
}

// ElapsedMs returns the elapsed time in fractional milliseconds.
func (o *Outcome) ElapsedMs() float64 {
	return float64(o.Elapsed) / float64(time.Millisecond)
}
