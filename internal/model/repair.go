package model

import (
	"strings"
	"time"
)

type RepairStatus string

const (
	RepairStatusPending          RepairStatus = "Pending"
	RepairStatusApproved         RepairStatus = "Approved"
	RepairStatusRejected         RepairStatus = "Rejected"
	RepairStatusEstimateSent     RepairStatus = "Estimate Sent"
	RepairStatusCustomerApproved RepairStatus = "Customer Approved"
	RepairStatusCustomerRejected RepairStatus = "Customer Rejected"
	RepairStatusInRepair         RepairStatus = "In Repair"
	RepairStatusHalfwayCompleted RepairStatus = "Halfway Completed"
	RepairStatusReadyForPickup   RepairStatus = "Ready for Pickup"
	RepairStatusCompleted        RepairStatus = "Completed"
	RepairStatusCancelled        RepairStatus = "Cancelled"
)

// AllRepairStatuses lists every status in lifecycle order.
var AllRepairStatuses = []RepairStatus{
	RepairStatusPending,
	RepairStatusApproved,
	RepairStatusRejected,
	RepairStatusEstimateSent,
	RepairStatusCustomerApproved,
	RepairStatusCustomerRejected,
	RepairStatusInRepair,
	RepairStatusHalfwayCompleted,
	RepairStatusReadyForPickup,
	RepairStatusCompleted,
	RepairStatusCancelled,
}

// ActiveRepairStatuses are the statuses that count against a technician's capacity.
var ActiveRepairStatuses = []RepairStatus{
	RepairStatusInRepair,
	RepairStatusHalfwayCompleted,
}

// IsActive reports whether the status occupies a technician.
func (s RepairStatus) IsActive() bool {
	return s == RepairStatusInRepair || s == RepairStatusHalfwayCompleted
}

// ParseRepairStatus matches case-insensitively against the known statuses.
func ParseRepairStatus(raw string) (RepairStatus, bool) {
	for _, s := range AllRepairStatuses {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, true
		}
	}
	return "", false
}

// Stage labels shown to customers.
const (
	StageRequestSubmitted   = "Request Submitted"
	StageAwaitingCustomer   = "Waiting for Customer Approval"
	StageRequestRejected    = "Request Rejected"
	StageCustomerApproved   = "Customer Approved"
	StageCustomerRejected   = "Customer Rejected"
	StageTechnicianAssigned = "Technician Assigned"
	StageRepairStarted      = "Repair Started"
	StageRepairInProgress   = "Repair In Progress"
	StageRepairHalfway      = "Repair Halfway Completed"
	StageAlmostComplete     = "Almost Complete"
	StageRepairComplete     = "Repair Complete"
	StagePickedUp           = "Picked Up"
	StageRequestCancelled   = "Request Cancelled"
)

// RepairRequest is one customer-submitted repair job.
type RepairRequest struct {
	ID                 string        `json:"id" bson:"_id"`
	CustomerID         string        `json:"customer_id" bson:"customer_id"`
	EquipmentType      string        `json:"equipment_type" bson:"equipment_type"`
	DamageType         string        `json:"damage_type" bson:"damage_type"`
	Description        string        `json:"description" bson:"description"`
	Status             RepairStatus  `json:"status" bson:"status"`
	CurrentStage       string        `json:"current_stage" bson:"current_stage"`
	RepairProgress     int           `json:"repair_progress" bson:"repair_progress"`
	CostEstimate       *float64      `json:"cost_estimate,omitempty" bson:"cost_estimate,omitempty"`
	TimeEstimate       *TimeEstimate `json:"time_estimate,omitempty" bson:"time_estimate,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	AssignedTechnician string        `json:"assigned_technician,omitempty" bson:"assigned_technician,omitempty"`
	TechnicianNotes    string        `json:"technician_notes,omitempty" bson:"technician_notes,omitempty"`
	ProgressNotes      string        `json:"progress_notes,omitempty" bson:"progress_notes,omitempty"`
	Images             []string      `json:"images,omitempty" bson:"images,omitempty"`
	Version            int64         `json:"version" bson:"version"`
	ApprovedAt         *time.Time    `json:"approved_at,omitempty" bson:"approved_at,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
}

// Snapshot captures the fields notifications and emails are rendered from.
func (r *RepairRequest) Snapshot() RepairSnapshot {
	snap := RepairSnapshot{
		EquipmentType:   r.EquipmentType,
		DamageType:      r.DamageType,
		Status:          r.Status,
		CurrentStage:    r.CurrentStage,
		RepairProgress:  r.RepairProgress,
		CostEstimate:    r.CostEstimate,
		RejectionReason: r.RejectionReason,
	}
	if r.TimeEstimate != nil {
		snap.TimeEstimate = r.TimeEstimate.String()
	}
	return snap
}

// RepairSnapshot is a denormalized copy of a request at one point in time.
type RepairSnapshot struct {
	EquipmentType   string       `json:"equipment_type"`
	DamageType      string       `json:"damage_type"`
	Status          RepairStatus `json:"status"`
	CurrentStage    string       `json:"current_stage"`
	RepairProgress  int          `json:"repair_progress"`
	CostEstimate    *float64     `json:"cost_estimate,omitempty"`
	TimeEstimate    string       `json:"time_estimate,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
}

// UserSummary is the populated view of a referenced user.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RepairDetail is the read-path projection with populated references.
type RepairDetail struct {
	*RepairRequest
	Customer         *UserSummary `json:"customer,omitempty"`
	Technician       *UserSummary `json:"technician,omitempty"`
	ImageURLs        []string     `json:"image_urls,omitempty"`
	EstimatedReadyAt *time.Time   `json:"estimated_ready_at,omitempty"`
	Overdue          bool         `json:"overdue"`
}

type RepairFilter struct {
	CustomerID   string       `form:"customer_id"`
	TechnicianID string       `form:"technician_id"`
	Status       RepairStatus `form:"status"`
	Limit        int          `form:"limit"`
	Offset       int          `form:"offset"`
}

type CreateRepairRequest struct {
	EquipmentType string `json:"equipment_type"`
	DamageType    string `json:"damage_type" binding:"required"`
	Description   string `json:"description"`
}

type DecisionRequest struct {
	Decision        RepairStatus `json:"status" binding:"required,repair_status"`
	CostEstimate    *float64     `json:"cost_estimate" binding:"omitempty,gte=0"`
	TimeEstimate    string       `json:"time_estimate" binding:"time_estimate"`
	RejectionReason string       `json:"rejection_reason"`
}

type CustomerDecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
}

type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id" binding:"required"`
	Notes        string `json:"notes"`
}

type ProgressRequest struct {
	RepairProgress *int   `json:"repair_progress" binding:"required"`
	Notes          string `json:"notes"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the actor may act on any request.
func (a Actor) IsStaff() bool {
	return a.Role == RoleServiceManager || a.Role == RoleAdmin
}
