package notification

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/repair-desk/internal/model"
)

// Content is the rendered text of one in-app notification.
type Content struct {
	Type    model.NotificationType
	Title   string
	Message string
}

// SubmissionContent renders the notification for a new request.
func SubmissionContent(snap model.RepairSnapshot) Content {
	return Content{
		Type:    model.NotificationRepairSubmitted,
		Title:   "Repair Request Submitted",
		Message: fmt.Sprintf("Your repair request for %s has been submitted successfully.", equipment(snap)),
	}
}

// StatusContent picks the notification for a status. Matching is
// case-insensitive and unknown statuses fall through to a generic update.
func StatusContent(status string, snap model.RepairSnapshot) Content {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return Content{
			Type:  model.NotificationRepairApproved,
			Title: "Repair Request Approved",
			Message: fmt.Sprintf("Your repair request for %s has been approved. Estimated cost: %s. Estimated time: %s.",
				equipment(snap), cost(snap.CostEstimate), orDefault(snap.TimeEstimate, "to be confirmed")),
		}
	case "rejected":
		return Content{
			Type:    model.NotificationRepairRejected,
			Title:   "Repair Request Update",
			Message: orDefault(snap.RejectionReason, "Your repair request could not be accepted. Please contact us for more details."),
		}
	case "in repair":
		return Content{
			Type:    model.NotificationRepairInProgress,
			Title:   "Repair In Progress",
			Message: fmt.Sprintf("Your %s is being repaired. Progress: %d%%.", equipment(snap), snap.RepairProgress),
		}
	case "ready for pickup", "completed":
		return Content{
			Type:    model.NotificationRepairCompleted,
			Title:   "Repair Completed",
			Message: "Your repair is complete and ready for pickup.",
		}
	default:
		return Content{
			Type:    model.NotificationRepairInProgress,
			Title:   "Repair Status Update",
			Message: fmt.Sprintf("Your repair request status has been updated to: %s.", status),
		}
	}
}

func equipment(snap model.RepairSnapshot) string {
	return orDefault(snap.EquipmentType, "your equipment")
}

func cost(v *float64) string {
	if v == nil {
		return "to be confirmed"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
