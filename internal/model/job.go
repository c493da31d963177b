package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusOpen       = "open"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"

	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRejected = "rejected"
	ProposalStatusWithdraw = "withdrawn"
)

// JobCategories 职位分类（顺序即展示顺序）
var JobCategories = []string{
	"Web Development",
	"Mobile Development",
	"Design",
	"Writing",
	"Marketing",
	"Data Science",
	"Other",
}

type Job struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       uuid.UUID  `json:"client_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	BudgetMin      *float64   `json:"budget_min"`
	BudgetMax      *float64   `json:"budget_max"`
	Deadline       *time.Time `json:"deadline"`
	SkillsRequired []string   `json:"skills_required"`
	Status         string     `json:"status"`
	ProposalsCount int        `json:"proposals_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Client *UserSummary `json:"client,omitempty"`
}

type JobFilter struct {
	Query    string
	Category string
}

type Proposal struct {
	ID                uuid.UUID `json:"id"`
	JobID             uuid.UUID `json:"job_id"`
	FreelancerID      uuid.UUID `json:"freelancer_id"`
	CoverLetter       string    `json:"cover_letter"`
	ProposedRate      float64   `json:"proposed_rate"`
	EstimatedDuration *string   `json:"estimated_duration"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	JobTitle   string       `json:"job_title,omitempty"`
	Freelancer *UserSummary `json:"freelancer,omitempty"`
}
