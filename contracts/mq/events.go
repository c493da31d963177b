package mq

import "time"

// Routing keys on the skillfund.events exchange.
const (
	RoutingJobPosted             = "job.posted"
	RoutingProposalSubmitted     = "proposal.submitted"
	RoutingProposalStatusChanged = "proposal.status_changed"
	RoutingCampaignBacked        = "campaign.backed"
	RoutingMessageSent           = "message.sent"
)

// Envelope 是所有事件共有的字段，event_id 用于消费端去重
type Envelope struct {
	EventID    string    `json:"event_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type JobPostedPayload struct {
	Envelope
	JobID    string `json:"job_id"`
	ClientID string `json:"client_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

type ProposalSubmittedPayload struct {
	Envelope
	ProposalID   string  `json:"proposal_id"`
	JobID        string  `json:"job_id"`
	JobTitle     string  `json:"job_title"`
	ClientID     string  `json:"client_id"`
	FreelancerID string  `json:"freelancer_id"`
	ProposedRate float64 `json:"proposed_rate"`
}

type ProposalStatusChangedPayload struct {
	Envelope
	ProposalID   string `json:"proposal_id"`
	JobID        string `json:"job_id"`
	JobTitle     string `json:"job_title"`
	FreelancerID string `json:"freelancer_id"`
	Status       string `json:"status"`
}

type CampaignBackedPayload struct {
	Envelope
	ContributionID string  `json:"contribution_id"`
	CampaignID     string  `json:"campaign_id"`
	CampaignTitle  string  `json:"campaign_title"`
	CreatorID      string  `json:"creator_id"`
	BackerID       string  `json:"backer_id"`
	Amount         float64 `json:"amount"`
}

type MessageSentPayload struct {
	Envelope
	MessageID   string `json:"message_id"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	RecipientID string `json:"recipient_id"`
}
