package kafka

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/hamba/avro/v2"

	"github.com/jwalitptl/repair-desk/internal/model"
)

//go:embed repair_event.avsc
var repairEventSchema string

// RepairEventSchema is the parsed Avro schema of the repair-events topic.
var RepairEventSchema = avro.MustParse(repairEventSchema)

// repairEventRecord mirrors the Avro schema
type repairEventRecord struct {
	ID             string         `avro:"id"`
	Type           string         `avro:"type"`
	RepairID       string         `avro:"repair_id"`
	CustomerID     string         `avro:"customer_id"`
	TechnicianID   string         `avro:"technician_id"`
	PreviousStatus string         `avro:"previous_status"`
	Milestone      bool           `avro:"milestone"`
	Notes          string         `avro:"notes"`
	Snapshot       snapshotRecord `avro:"snapshot"`
	OccurredAt     time.Time      `avro:"occurred_at"`
}

type snapshotRecord struct {
	EquipmentType   string   `avro:"equipment_type"`
	DamageType      string   `avro:"damage_type"`
	Status          string   `avro:"status"`
	CurrentStage    string   `avro:"current_stage"`
	RepairProgress  int      `avro:"repair_progress"`
	CostEstimate    *float64 `avro:"cost_estimate"`
	TimeEstimate    string   `avro:"time_estimate"`
	RejectionReason string   `avro:"rejection_reason"`
}

// EncodeRepairEvent serializes evt with RepairEventSchema.
func EncodeRepairEvent(evt *model.RepairEvent) ([]byte, error) {
	rec := repairEventRecord{
		ID:             evt.ID,
		Type:           string(evt.Type),
		RepairID:       evt.RepairID,
		CustomerID:     evt.CustomerID,
		TechnicianID:   evt.TechnicianID,
		PreviousStatus: string(evt.PreviousStatus),
		Milestone:      evt.Milestone,
		Notes:          evt.Notes,
		Snapshot: snapshotRecord{
			EquipmentType:   evt.Snapshot.EquipmentType,
			DamageType:      evt.Snapshot.DamageType,
			Status:          string(evt.Snapshot.Status),
			CurrentStage:    evt.Snapshot.CurrentStage,
			RepairProgress:  evt.Snapshot.RepairProgress,
			CostEstimate:    evt.Snapshot.CostEstimate,
			TimeEstimate:    evt.Snapshot.TimeEstimate,
			RejectionReason: evt.Snapshot.RejectionReason,
		},
		OccurredAt: evt.OccurredAt.UTC(),
	}
	data, err := avro.Marshal(RepairEventSchema, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode repair event: %w", err)
	}
	return data, nil
}

func DecodeRepairEvent(data []byte) (*model.RepairEvent, error) {
	var rec repairEventRecord
	if err := avro.Unmarshal(RepairEventSchema, data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode repair event: %w", err)
	}
	return &model.RepairEvent{
		ID:             rec.ID,
		Type:           model.RepairEventType(rec.Type),
		RepairID:       rec.RepairID,
		CustomerID:     rec.CustomerID,
		TechnicianID:   rec.TechnicianID,
		PreviousStatus: model.RepairStatus(rec.PreviousStatus),
		Milestone:      rec.Milestone,
		Notes:          rec.Notes,
		Snapshot: model.RepairSnapshot{
			EquipmentType:   rec.Snapshot.EquipmentType,
			DamageType:      rec.Snapshot.DamageType,
			Status:          model.RepairStatus(rec.Snapshot.Status),
			CurrentStage:    rec.Snapshot.CurrentStage,
			RepairProgress:  rec.Snapshot.RepairProgress,
			CostEstimate:    rec.Snapshot.CostEstimate,
			TimeEstimate:    rec.Snapshot.TimeEstimate,
			RejectionReason: rec.Snapshot.RejectionReason,
		},
		OccurredAt: rec.OccurredAt,
	}, nil
}
