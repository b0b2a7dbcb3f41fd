package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Template names.
const (
	CustomerSubmitted          = "customer_submitted"
	ManagerNewRequest          = "manager_new_request"
	CustomerApproved           = "customer_approved"
	CustomerRejected           = "customer_rejected"
	ManagerCustomerDecision    = "manager_customer_decision"
	CustomerTechnicianAssigned = "customer_technician_assigned"
	TechnicianAssignment       = "technician_assignment"
	CustomerProgress           = "customer_progress"
	ManagerMilestone           = "manager_milestone"
	CustomerCompleted          = "customer_completed"
	ManagerCompleted           = "manager_completed"
	TechnicianCancelled        = "technician_cancelled"
	ManagerCancelled           = "manager_cancelled"
	CustomerCollected          = "customer_collected"
)

// Data is the view every template renders from.
type Data struct {
	RecipientName  string
	CustomerName   string
	TechnicianName string
	RepairID       string
	EquipmentType  string
	DamageType     string
	Status         string
	Stage          string
	Progress       int
	Milestone      bool
	Cost           string
	TimeEstimate   string
	Reason         string
	Notes          string
	Approved       bool
}

const templateText = `
{{define "customer_submitted.subject"}}Repair request received{{end}}
{{define "customer_submitted.body"}}Hello {{.RecipientName}},

We have received your repair request for {{.EquipmentType}} ({{.DamageType}}).
Reference: {{.RepairID}}

A service manager will review it and send you an estimate shortly.
{{end}}

{{define "manager_new_request.subject"}}New repair request: {{.EquipmentType}}{{end}}
{{define "manager_new_request.body"}}Hello {{.RecipientName}},

{{.CustomerName}} submitted a new repair request.
Equipment: {{.EquipmentType}}
Damage: {{.DamageType}}
Reference: {{.RepairID}}

Please review and send an estimate.
{{end}}

{{define "customer_approved.subject"}}Your repair estimate is ready{{end}}
{{define "customer_approved.body"}}Hello {{.RecipientName}},

Your repair request for {{.EquipmentType}} has been approved.
Estimated cost: {{.Cost}}
Estimated time: {{.TimeEstimate}}

Please approve or reject the estimate to continue.
{{end}}

{{define "customer_rejected.subject"}}Update on your repair request{{end}}
{{define "customer_rejected.body"}}Hello {{.RecipientName}},

Unfortunately we cannot take on the repair of your {{.EquipmentType}}.
Reason: {{.Reason}}
{{end}}

{{define "manager_customer_decision.subject"}}Customer {{if .Approved}}approved{{else}}rejected{{end}} estimate for {{.EquipmentType}}{{end}}
{{define "manager_customer_decision.body"}}Hello {{.RecipientName}},

{{.CustomerName}} has {{if .Approved}}approved{{else}}rejected{{end}} the estimate for repair {{.RepairID}}.
{{if .Approved}}Please assign a technician.{{end}}
{{end}}

{{define "customer_technician_assigned.subject"}}A technician is working on your {{.EquipmentType}}{{end}}
{{define "customer_technician_assigned.body"}}Hello {{.RecipientName}},

{{.TechnicianName}} has been assigned to your repair and work has started.
{{end}}

{{define "technician_assignment.subject"}}New repair assigned: {{.EquipmentType}}{{end}}
{{define "technician_assignment.body"}}Hello {{.RecipientName}},

You have been assigned repair {{.RepairID}}.
Equipment: {{.EquipmentType}}
Damage: {{.DamageType}}
{{if .Notes}}Notes: {{.Notes}}
{{end}}{{end}}

{{define "customer_progress.subject"}}{{if .Milestone}}Repair milestone: {{.Stage}}{{else}}Repair progress update{{end}}{{end}}
{{define "customer_progress.body"}}Hello {{.RecipientName}},

Your {{.EquipmentType}} repair is now {{.Progress}}% complete ({{.Stage}}).
{{if .Notes}}Technician notes: {{.Notes}}
{{end}}{{end}}

{{define "manager_milestone.subject"}}Repair {{.RepairID}} reached {{.Progress}}%{{end}}
{{define "manager_milestone.body"}}Hello {{.RecipientName}},

Repair {{.RepairID}} ({{.EquipmentType}}) reached {{.Progress}}%: {{.Stage}}.
{{end}}

{{define "customer_completed.subject"}}Your {{.EquipmentType}} is ready for pickup{{end}}
{{define "customer_completed.body"}}Hello {{.RecipientName}},

Your repair is complete and ready for pickup. The completion report is attached.
{{end}}

{{define "manager_completed.subject"}}Repair {{.RepairID}} completed{{end}}
{{define "manager_completed.body"}}Hello {{.RecipientName}},

Repair {{.RepairID}} ({{.EquipmentType}}) is complete and awaiting pickup.
{{end}}

{{define "technician_cancelled.subject"}}Repair {{.RepairID}} was cancelled{{end}}
{{define "technician_cancelled.body"}}Hello {{.RecipientName}},

Repair {{.RepairID}} ({{.EquipmentType}}) has been cancelled. No further work is needed.
{{end}}

{{define "manager_cancelled.subject"}}Repair {{.RepairID}} was cancelled{{end}}
{{define "manager_cancelled.body"}}Hello {{.RecipientName}},

Repair {{.RepairID}} ({{.EquipmentType}}) was cancelled.
{{end}}

{{define "customer_collected.subject"}}Thank you for collecting your {{.EquipmentType}}{{end}}
{{define "customer_collected.body"}}Hello {{.RecipientName}},

Thank you for choosing our repair service. We hope to see you on the pitch soon.
{{end}}
`

var templates = template.Must(template.New("email").Parse(templateText))

// Render produces the subject and body of the named template.
func Render(name string, data Data) (string, string, error) {
	var subject, body bytes.Buffer
	if err := templates.ExecuteTemplate(&subject, name+".subject", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := templates.ExecuteTemplate(&body, name+".body", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s body: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), strings.TrimSpace(body.String()) + "\n", nil
}
