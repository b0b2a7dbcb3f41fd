package model

import (
	"time"
)

type NotificationType string

const (
	NotificationRepairSubmitted  NotificationType = "repair_submitted"
	NotificationRepairApproved   NotificationType = "repair_approved"
	NotificationRepairRejected   NotificationType = "repair_rejected"
	NotificationRepairInProgress NotificationType = "repair_in_progress"
	NotificationRepairCompleted  NotificationType = "repair_completed"
)

// NotificationMetadata is the request state at emission time.
type NotificationMetadata struct {
	EquipmentType  string       `json:"equipment_type" bson:"equipment_type"`
	DamageType     string       `json:"damage_type" bson:"damage_type"`
	Status         RepairStatus `json:"status" bson:"status"`
	RepairProgress int          `json:"repair_progress" bson:"repair_progress"`
}

// RepairNotification is one in-app notification shown to a customer.
type RepairNotification struct {
	ID              string               `json:"id" bson:"_id"`
	CustomerID      string               `json:"customer_id" bson:"customer_id"`
	RepairRequestID string               `json:"repair_request_id" bson:"repair_request_id"`
	EventID         string               `json:"event_id" bson:"event_id"`
	Type            NotificationType     `json:"type" bson:"type"`
	Title           string               `json:"title" bson:"title"`
	Message         string               `json:"message" bson:"message"`
	IsRead          bool                 `json:"is_read" bson:"is_read"`
	Metadata        NotificationMetadata `json:"metadata" bson:"metadata"`
	CreatedAt       time.Time            `json:"created_at" bson:"created_at"`
	ReadAt          *time.Time           `json:"read_at,omitempty" bson:"read_at,omitempty"`
}

type NotificationFilter struct {
	UnreadOnly bool `form:"unread"`
	Limit      int  `form:"limit"`
	Offset     int  `form:"offset"`
}
