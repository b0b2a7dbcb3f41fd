package consul

import (
	"errors"
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	registered   *api.AgentServiceRegistration
	deregistered string
	err          error
}

func (f *fakeAgent) ServiceRegister(s *api.AgentServiceRegistration) error {
	f.registered = s
	return f.err
}

func (f *fakeAgent) ServiceDeregister(id string) error {
	f.deregistered = id
	return f.err
}

func TestRegistrar(t *testing.T) {
	agent := &fakeAgent{}
	r := NewRegistrarWithAgent(agent, Registration{Name: "repair-desk", Host: "api-1", Port: 8080})

	require.NoError(t, r.Register())
	require.NotNil(t, agent.registered)
	assert.Equal(t, "repair-desk-api-1-8080", agent.registered.ID)
	assert.Equal(t, "http://api-1:8080/health/ready", agent.registered.Check.HTTP)

	require.NoError(t, r.Deregister())
	assert.Equal(t, "repair-desk-api-1-8080", agent.deregistered)
}

func TestRegistrarError(t *testing.T) {
	agent := &fakeAgent{err: errors.New("agent down")}
	r := NewRegistrarWithAgent(agent, Registration{Name: "repair-desk", Host: "h", Port: 1})

	err := r.Register()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent down")
}
