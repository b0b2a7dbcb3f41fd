package model

import "time"

// MaxActiveRepairs is the number of concurrent repairs a technician can carry.
const MaxActiveRepairs = 10

// Technician is a repair worker backed by a user account with the technician role.
type Technician struct {
	ID            string    `json:"id" bson:"_id"`
	Skills        []string  `json:"skills" bson:"skills"`
	Available     bool      `json:"available" bson:"available"`
	ActiveRepairs int       `json:"active_repairs" bson:"active_repairs"`
	Version       int64     `json:"version" bson:"version"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

type TechnicianDetail struct {
	*Technician
	User *UserSummary `json:"user,omitempty"`
}

type TechnicianFilter struct {
	Available *bool  `form:"available"`
	Skill     string `form:"skill"`
}

type CreateTechnicianRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	Skills    []string `json:"skills"`
	Available *bool    `json:"available"`
}

type UpdateTechnicianRequest struct {
	Skills    []string `json:"skills"`
	Available *bool    `json:"available"`
}

// Workload is a technician's current load.
type Workload struct {
	TechnicianID string           `json:"technician_id"`
	Active       int              `json:"active"`
	Capacity     int              `json:"capacity"`
	Available    bool             `json:"available"`
	Repairs      []*RepairRequest `json:"repairs"`
}
