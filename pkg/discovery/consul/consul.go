// Package consul registers the HTTP service with a Consul agent.
package consul

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/consul/api"
)

// Agent is the subset of the Consul agent API used for registration.
type Agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

type Registration struct {
	Name       string
	Host       string
	Port       int
	HealthPath string
}

// ID is unique per host and port so replicas register side by side.
func (r Registration) ID() string {
	return r.Name + "-" + r.Host + "-" + strconv.Itoa(r.Port)
}

type Registrar struct {
	agent Agent
	reg   Registration
}

// NewRegistrar connects to the agent at address.
func NewRegistrar(address string, reg Registration) (*Registrar, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return NewRegistrarWithAgent(client.Agent(), reg), nil
}

func NewRegistrarWithAgent(agent Agent, reg Registration) *Registrar {
	if reg.HealthPath == "" {
		reg.HealthPath = "/health/ready"
	}
	return &Registrar{agent: agent, reg: reg}
}

func (r *Registrar) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      r.reg.ID(),
		Name:    r.reg.Name,
		Address: r.reg.Host,
		Port:    r.reg.Port,
		Tags:    []string{"http"},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", r.reg.Host, r.reg.Port, r.reg.HealthPath),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := r.agent.ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register %s with consul: %w", registration.ID, err)
	}
	return nil
}

func (r *Registrar) Deregister() error {
	if err := r.agent.ServiceDeregister(r.reg.ID()); err != nil {
		return fmt.Errorf("failed to deregister %s: %w", r.reg.ID(), err)
	}
	return nil
}
