package models

import "encoding/json"

// Live stream event names.
const (
	EventReservationCreated = "reservation_created"
	EventOrderCreated       = "order_created"
	EventTableUpdate        = "table_update"
	EventFloorUpdate        = "floor_update"
	EventSessionEnded       = "session_ended"
)

// Event is one message of the branch live stream.
type Event struct {
	Event    string          `json:"event"`
	BranchID string          `json:"branchId,omitempty"`
	Data     json.RawMessage `json:"data"`
}
