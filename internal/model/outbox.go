package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusRetry      OutboxStatus = "retry"
	OutboxStatusFailed     OutboxStatus = "failed"
)

type OutboxEvent struct {
	ID           string          `db:"id" json:"id" bson:"_id"`
	AggregateID  string          `db:"aggregate_id" json:"aggregate_id" bson:"aggregate_id"`
	EventType    string          `db:"event_type" json:"event_type" bson:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload" bson:"payload"`
	Status       OutboxStatus    `db:"status" json:"status" bson:"status"`
	Attempts     int             `db:"attempts" json:"attempts" bson:"attempts"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty" bson:"error_message,omitempty"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty" bson:"retry_at,omitempty"`
	ClaimedAt    *time.Time      `db:"claimed_at" json:"claimed_at,omitempty" bson:"claimed_at,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

// NewOutboxEvent wraps a repair event for persistence. The outbox row shares the event ID.
func NewOutboxEvent(evt *RepairEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal repair event: %w", err)
	}
	return &OutboxEvent{
		ID:          evt.ID,
		AggregateID: evt.RepairID,
		EventType:   string(evt.Type),
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   evt.OccurredAt,
		UpdatedAt:   evt.OccurredAt,
	}, nil
}

// RepairEvent decodes the payload.
func (e *OutboxEvent) RepairEvent() (*RepairEvent, error) {
	var evt RepairEvent
	if err := json.Unmarshal(e.Payload, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode outbox payload %s: %w", e.ID, err)
	}
	return &evt, nil
}
