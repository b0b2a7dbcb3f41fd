package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/repair-desk/internal/email"
	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/service/report"
)

// recipients of one event's emails
type recipients struct {
	customer   *model.User
	technician *model.User
	managers   []*model.User
}

type outgoing struct {
	to         *model.User
	template   string
	attachment *email.Attachment
}

// Handle runs the fan-out for one committed lifecycle event. The returned
// error covers only the in-app notification write, which is safe to retry.
// Email and realtime failures come back as warnings.
//
// A retried event whose notification already exists skips the email channel
// so customers are not mailed twice.
func (s *Service) Handle(ctx context.Context, evt *model.RepairEvent) ([]string, error) {
	log := s.log.WithFields(map[string]interface{}{
		"event_id":   evt.ID,
		"event_type": string(evt.Type),
		"repair_id":  evt.RepairID,
	})

	if content, ok := contentFor(evt); ok {
		_, err := s.persist(ctx, evt.ID, evt.CustomerID, evt.RepairID, content, evt.Snapshot)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			log.Debug("notification already recorded, skipping email")
			return nil, nil
		case err != nil:
			return nil, err
		}
	}

	if s.mailer == nil {
		return nil, nil
	}

	var warnings []string
	to, err := s.recipients(ctx, evt)
	if err != nil {
		log.Warn("failed to resolve email recipients", "error", err.Error())
		return []string{fmt.Sprintf("email skipped: %v", err)}, nil
	}

	for _, m := range s.plan(ctx, evt, to) {
		if err := s.sendEmail(ctx, evt, to, m); err != nil {
			s.metrics.EmailsSent.WithLabelValues("failed").Inc()
			log.Warn("email delivery failed", "template", m.template, "to", m.to.Email, "error", err.Error())
			warnings = append(warnings, fmt.Sprintf("email %s to %s failed: %v", m.template, m.to.Email, err))
			continue
		}
		s.metrics.EmailsSent.WithLabelValues("sent").Inc()
	}
	return warnings, nil
}

// contentFor picks the in-app notification of an event. Non-milestone
// progress produces none.
func contentFor(evt *model.RepairEvent) (Content, bool) {
	switch evt.Type {
	case model.EventRepairSubmitted:
		return SubmissionContent(evt.Snapshot), true
	case model.EventProgressUpdated:
		if !evt.Milestone {
			return Content{}, false
		}
	}
	return StatusContent(string(evt.Snapshot.Status), evt.Snapshot), true
}

func (s *Service) recipients(ctx context.Context, evt *model.RepairEvent) (*recipients, error) {
	r := &recipients{}
	customer, err := s.users.Get(ctx, evt.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", evt.CustomerID, err)
	}
	r.customer = customer
	if evt.TechnicianID != "" {
		if t, err := s.users.Get(ctx, evt.TechnicianID); err == nil {
			r.technician = t
		}
	}
	managers, err := s.users.ListByRole(ctx, model.RoleServiceManager)
	if err != nil {
		return nil, fmt.Errorf("service managers: %w", err)
	}
	r.managers = managers
	return r, nil
}

// plan lists the emails of an event.
func (s *Service) plan(ctx context.Context, evt *model.RepairEvent, to *recipients) []outgoing {
	var out []outgoing
	toManagers := func(tmpl string) {
		for _, m := range to.managers {
			out = append(out, outgoing{to: m, template: tmpl})
		}
	}

	switch evt.Type {
	case model.EventRepairSubmitted:
		out = append(out, outgoing{to: to.customer, template: email.CustomerSubmitted})
		toManagers(email.ManagerNewRequest)
	case model.EventRepairDecided:
		tmpl := email.CustomerRejected
		if evt.Snapshot.Status == model.RepairStatusApproved {
			tmpl = email.CustomerApproved
		}
		out = append(out, outgoing{to: to.customer, template: tmpl})
	case model.EventCustomerResponded:
		toManagers(email.ManagerCustomerDecision)
	case model.EventTechnicianAssigned:
		out = append(out, outgoing{to: to.customer, template: email.CustomerTechnicianAssigned})
		if to.technician != nil {
			out = append(out, outgoing{to: to.technician, template: email.TechnicianAssignment})
		}
	case model.EventProgressUpdated:
		if evt.Snapshot.RepairProgress == 100 {
			out = append(out, outgoing{to: to.customer, template: email.CustomerCompleted, attachment: s.completionReport(ctx, evt)})
			toManagers(email.ManagerCompleted)
			break
		}
		out = append(out, outgoing{to: to.customer, template: email.CustomerProgress})
		if evt.Milestone {
			toManagers(email.ManagerMilestone)
		}
	case model.EventRepairCancelled:
		if to.technician != nil {
			out = append(out, outgoing{to: to.technician, template: email.TechnicianCancelled})
		}
		toManagers(email.ManagerCancelled)
	case model.EventRepairCollected:
		out = append(out, outgoing{to: to.customer, template: email.CustomerCollected})
	}
	return out
}

func (s *Service) sendEmail(ctx context.Context, evt *model.RepairEvent, to *recipients, m outgoing) error {
	data := email.Data{
		RecipientName: m.to.Name,
		CustomerName:  to.customer.Name,
		RepairID:      evt.RepairID,
		EquipmentType: equipment(evt.Snapshot),
		DamageType:    evt.Snapshot.DamageType,
		Status:        string(evt.Snapshot.Status),
		Stage:         evt.Snapshot.CurrentStage,
		Progress:      evt.Snapshot.RepairProgress,
		Milestone:     evt.Milestone,
		Cost:          cost(evt.Snapshot.CostEstimate),
		TimeEstimate:  orDefault(evt.Snapshot.TimeEstimate, "to be confirmed"),
		Reason:        orDefault(evt.Snapshot.RejectionReason, "Please contact us for more details."),
		Notes:         evt.Notes,
		Approved:      evt.Snapshot.Status == model.RepairStatusCustomerApproved,
	}
	if to.technician != nil {
		data.TechnicianName = to.technician.Name
	}

	subject, body, err := email.Render(m.template, data)
	if err != nil {
		return err
	}
	msg := &email.Message{To: []string{m.to.Email}, Subject: subject, Body: body}
	if m.attachment != nil {
		msg.Attachments = []email.Attachment{*m.attachment}
	}
	return s.mailer.Send(ctx, msg)
}

// completionReport renders the PDF for the completion email. The email goes
// out without it when rendering fails.
func (s *Service) completionReport(ctx context.Context, evt *model.RepairEvent) *email.Attachment {
	repair, err := s.repairs.Get(ctx, evt.RepairID)
	if err != nil {
		s.log.Warn("completion report skipped", "repair_id", evt.RepairID, "error", err.Error())
		return nil
	}
	detail := &model.RepairDetail{RepairRequest: repair}
	if u, err := s.users.Get(ctx, repair.CustomerID); err == nil {
		detail.Customer = u.Summary()
	}
	if repair.AssignedTechnician != "" {
		if u, err := s.users.Get(ctx, repair.AssignedTechnician); err == nil {
			detail.Technician = u.Summary()
		}
	}
	data, err := report.CompletionPDF(detail, s.now())
	if err != nil {
		s.log.Warn("completion report failed", "repair_id", evt.RepairID, "error", err.Error())
		return nil
	}
	return &email.Attachment{
		Filename:    report.Filename(repair.ID),
		ContentType: "application/pdf",
		Data:        data,
	}
}
