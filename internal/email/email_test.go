package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/repair-desk/pkg/circuitbreaker"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestRender(t *testing.T) {
	names := []string{
		CustomerSubmitted, ManagerNewRequest, CustomerApproved, CustomerRejected,
		ManagerCustomerDecision, CustomerTechnicianAssigned, TechnicianAssignment,
		CustomerProgress, ManagerMilestone, CustomerCompleted, ManagerCompleted,
		TechnicianCancelled, ManagerCancelled, CustomerCollected,
	}
	data := Data{RecipientName: "Asha", EquipmentType: "Cricket Bat", RepairID: "r1", Progress: 50, Stage: "Repair Halfway Completed"}
	for _, name := range names {
		subject, body, err := Render(name, data)
		require.NoError(t, err, name)
		assert.NotEmpty(t, subject, name)
		assert.Contains(t, body, "Asha", name)
	}
}

func TestRender_Variants(t *testing.T) {
	subject, _, err := Render(CustomerProgress, Data{Milestone: true, Stage: "Almost Complete"})
	require.NoError(t, err)
	assert.Equal(t, "Repair milestone: Almost Complete", subject)

	subject, _, err = Render(CustomerProgress, Data{Progress: 30})
	require.NoError(t, err)
	assert.Equal(t, "Repair progress update", subject)

	_, body, err := Render(ManagerCustomerDecision, Data{Approved: true, RepairID: "r9"})
	require.NoError(t, err)
	assert.Contains(t, body, "Please assign a technician.")

	_, _, err = Render("unknown", Data{})
	assert.Error(t, err)
}

func TestSMTPSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := newSMTPSender(SMTPConfig{From: "repairs@example.com"}, d)

	err := s.Send(context.Background(), &Message{
		To:      []string{"asha@example.com"},
		Subject: "Your repair",
		Body:    "done",
		Attachments: []Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"repairs@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"asha@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your repair"}, d.sent[0].GetHeader("Subject"))

	var raw bytes.Buffer
	_, err = d.sent[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), `filename="report.pdf"`)
}

func TestSMTPSender_Failures(t *testing.T) {
	s := newSMTPSender(SMTPConfig{From: "repairs@example.com"}, &fakeDialer{err: errors.New("relay down")})

	assert.Error(t, s.Send(context.Background(), &Message{}))

	msg := &Message{To: []string{"a@example.com"}, Subject: "x", Body: "y"}
	for i := 0; i < 5; i++ {
		assert.Error(t, s.Send(context.Background(), msg))
	}
	assert.ErrorIs(t, s.Send(context.Background(), msg), circuitbreaker.ErrOpen)
}
