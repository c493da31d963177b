package repository

import (
	"context"
	"fmt"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/internal/model"
	"skillfund/pkg/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProposalRepository struct {
	db     *pgxpool.Pool
	outbox outbox.Writer
}

func NewProposalRepository(db *pgxpool.Pool, outboxRepo outbox.Writer) *ProposalRepository {
	return &ProposalRepository{db: db, outbox: outboxRepo}
}

const proposalColumns = `
	p.id, p.job_id, p.freelancer_id, p.cover_letter, p.proposed_rate, p.estimated_duration,
	COALESCE(p.status, 'pending'), p.created_at, COALESCE(p.updated_at, p.created_at),
	j.title, f.full_name, f.avatar_url, f.location, COALESCE(f.rating, 0)
`

const proposalFrom = `
	FROM proposals p
	JOIN jobs j ON j.id = p.job_id
	LEFT JOIN profiles f ON f.id = p.freelancer_id
`

func scanProposal(row pgx.Row) (*model.Proposal, error) {
	var (
		p                      model.Proposal
		name, avatar, location *string
		rating                 float64
	)
	err := row.Scan(
		&p.ID,
		&p.JobID,
		&p.FreelancerID,
		&p.CoverLetter,
		&p.ProposedRate,
		&p.EstimatedDuration,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.JobTitle,
		&name,
		&avatar,
		&location,
		&rating,
	)
	if err != nil {
		return nil, err
	}
	p.Freelancer = &model.UserSummary{
		ID:        p.FreelancerID,
		FullName:  model.Str(name),
		AvatarURL: model.Str(avatar),
		Location:  model.Str(location),
		Rating:    rating,
	}
	return &p, nil
}

func collectProposals(rows pgx.Rows) ([]*model.Proposal, error) {
	defer rows.Close()

	out := make([]*model.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts the proposal and bumps the job's proposals_count in one
// transaction. The job row is locked so a concurrent status change cannot
// slip in between the open check and the insert.
func (r *ProposalRepository) Create(ctx context.Context, p *model.Proposal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		clientID  uuid.UUID
		jobTitle  string
		jobStatus string
	)
	err = tx.QueryRow(ctx, `
		SELECT client_id, title, COALESCE(status, 'open')
		FROM jobs
		WHERE id = $1
		FOR UPDATE
	`, p.JobID).Scan(&clientID, &jobTitle, &jobStatus)
	if err != nil {
		return mapError("lock job", err)
	}
	if jobStatus != model.JobStatusOpen {
		return fmt.Errorf("job %s is %s: %w", p.JobID, jobStatus, ErrInvalidState)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO proposals (job_id, freelancer_id, cover_letter, proposed_rate, estimated_duration, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, status, created_at, updated_at
	`,
		p.JobID,
		p.FreelancerID,
		p.CoverLetter,
		p.ProposedRate,
		p.EstimatedDuration,
	).Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError("insert proposal", err)
	}
	p.JobTitle = jobTitle

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET proposals_count = COALESCE(proposals_count, 0) + 1, updated_at = NOW()
		WHERE id = $1
	`, p.JobID)
	if err != nil {
		return mapError("increment proposals_count", err)
	}

	payload := mqcontracts.ProposalSubmittedPayload{
		Envelope:     newEnvelope(ctx),
		ProposalID:   p.ID.String(),
		JobID:        p.JobID.String(),
		JobTitle:     jobTitle,
		ClientID:     clientID.String(),
		FreelancerID: p.FreelancerID.String(),
		ProposedRate: p.ProposedRate,
	}
	if err := outbox.Record(ctx, tx, r.outbox, outbox.Aggregate{Type: "proposal", ID: p.ID.String()}, mqcontracts.RoutingProposalSubmitted, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *ProposalRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Proposal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+proposalColumns+proposalFrom+`
		WHERE p.job_id = $1
		ORDER BY p.created_at DESC
	`, jobID)
	if err != nil {
		return nil, mapError("list job proposals", err)
	}
	out, err := collectProposals(rows)
	return out, mapError("list job proposals", err)
}

func (r *ProposalRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*model.Proposal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+proposalColumns+proposalFrom+`
		WHERE p.freelancer_id = $1
		ORDER BY p.created_at DESC
	`, freelancerID)
	if err != nil {
		return nil, mapError("list freelancer proposals", err)
	}
	out, err := collectProposals(rows)
	return out, mapError("list freelancer proposals", err)
}

// UpdateStatus lets the job's client accept or reject a pending proposal.
// Accepting moves the job to in_progress.
func (r *ProposalRepository) UpdateStatus(ctx context.Context, proposalID, clientID uuid.UUID, status string) (*model.Proposal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		current, jobStatus string
		ownerID, jobID     uuid.UUID
	)
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(p.status, 'pending'), p.job_id, j.client_id, COALESCE(j.status, 'open')
		FROM proposals p
		JOIN jobs j ON j.id = p.job_id
		WHERE p.id = $1
		FOR UPDATE OF p, j
	`, proposalID).Scan(&current, &jobID, &ownerID, &jobStatus)
	if err != nil {
		return nil, mapError("lock proposal", err)
	}
	if ownerID != clientID {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrNotOwner)
	}
	if current != model.ProposalStatusPending {
		return nil, fmt.Errorf("proposal %s is %s: %w", proposalID, current, ErrInvalidState)
	}
	if status == model.ProposalStatusAccepted && jobStatus != model.JobStatusOpen {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, jobStatus, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1
	`, proposalID, status); err != nil {
		return nil, mapError("update proposal status", err)
	}

	if status == model.ProposalStatusAccepted {
		if _, err := tx.Exec(ctx, `
			UPDATE jobs SET status = 'in_progress', updated_at = NOW() WHERE id = $1
		`, jobID); err != nil {
			return nil, mapError("start job", err)
		}
	}

	p, err := scanProposal(tx.QueryRow(ctx, `SELECT `+proposalColumns+proposalFrom+` WHERE p.id = $1`, proposalID))
	if err != nil {
		return nil, mapError("reload proposal", err)
	}

	payload := mqcontracts.ProposalStatusChangedPayload{
		Envelope:     newEnvelope(ctx),
		ProposalID:   p.ID.String(),
		JobID:        p.JobID.String(),
		JobTitle:     p.JobTitle,
		FreelancerID: p.FreelancerID.String(),
		Status:       status,
	}
	if err := outbox.Record(ctx, tx, r.outbox, outbox.Aggregate{Type: "proposal", ID: p.ID.String()}, mqcontracts.RoutingProposalStatusChanged, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// FreelancerStats 自由职业者的提案统计
type FreelancerStats struct {
	Pending  int
	Accepted int
	Decided  int
}

func (r *ProposalRepository) FreelancerStats(ctx context.Context, freelancerID uuid.UUID) (FreelancerStats, error) {
	var s FreelancerStats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'accepted'),
			COUNT(*) FILTER (WHERE status IN ('accepted', 'rejected'))
		FROM proposals
		WHERE freelancer_id = $1
	`, freelancerID).Scan(&s.Pending, &s.Accepted, &s.Decided)
	return s, mapError("freelancer stats", err)
}

// ClientStats 客户收到的提案统计
type ClientStats struct {
	PendingProposals int
	TotalSpent       float64
}

func (r *ProposalRepository) ClientStats(ctx context.Context, clientID uuid.UUID) (ClientStats, error) {
	var s ClientStats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE p.status = 'pending'),
			COALESCE(SUM(p.proposed_rate) FILTER (WHERE p.status = 'accepted'), 0)
		FROM proposals p
		JOIN jobs j ON j.id = p.job_id
		WHERE j.client_id = $1
	`, clientID).Scan(&s.PendingProposals, &s.TotalSpent)
	return s, mapError("client stats", err)
}
