package model

import "time"

type RepairEventType string

const (
	EventRepairSubmitted    RepairEventType = "repair.submitted"
	EventRepairDecided      RepairEventType = "repair.decided"
	EventCustomerResponded  RepairEventType = "repair.customer_responded"
	EventTechnicianAssigned RepairEventType = "repair.technician_assigned"
	EventProgressUpdated    RepairEventType = "repair.progress_updated"
	EventRepairCancelled    RepairEventType = "repair.cancelled"
	EventRepairCollected    RepairEventType = "repair.collected"
)

// RepairEvent is emitted once per committed lifecycle transition.
type RepairEvent struct {
	ID             string          `json:"id"`
	Type           RepairEventType `json:"type"`
	RepairID       string          `json:"repair_id"`
	CustomerID     string          `json:"customer_id"`
	TechnicianID   string          `json:"technician_id,omitempty"`
	PreviousStatus RepairStatus    `json:"previous_status,omitempty"`
	Milestone      bool            `json:"milestone"`
	Notes          string          `json:"notes,omitempty"`
	Snapshot       RepairSnapshot  `json:"snapshot"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
