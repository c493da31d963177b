package repository

import (
	"context"
	"fmt"
	"strings"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/internal/model"
	"skillfund/pkg/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	db     *pgxpool.Pool
	outbox outbox.Writer
}

func NewJobRepository(db *pgxpool.Pool, outboxRepo outbox.Writer) *JobRepository {
	return &JobRepository{db: db, outbox: outboxRepo}
}

const jobColumns = `
	j.id, j.client_id, j.title, j.description, j.category, j.budget_min, j.budget_max, j.deadline,
	j.skills_required, COALESCE(j.status, 'open'), COALESCE(j.proposals_count, 0), j.created_at, j.updated_at,
	c.full_name, c.avatar_url, c.location, COALESCE(c.rating, 0)
`

const jobFrom = `
	FROM jobs j
	LEFT JOIN profiles c ON c.id = j.client_id
`

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j                      model.Job
		name, avatar, location *string
		rating                 float64
	)
	err := row.Scan(
		&j.ID,
		&j.ClientID,
		&j.Title,
		&j.Description,
		&j.Category,
		&j.BudgetMin,
		&j.BudgetMax,
		&j.Deadline,
		&j.SkillsRequired,
		&j.Status,
		&j.ProposalsCount,
		&j.CreatedAt,
		&j.UpdatedAt,
		&name,
		&avatar,
		&location,
		&rating,
	)
	if err != nil {
		return nil, err
	}
	j.Client = &model.UserSummary{
		ID:        j.ClientID,
		FullName:  model.Str(name),
		AvatarURL: model.Str(avatar),
		Location:  model.Str(location),
		Rating:    rating,
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*model.Job, error) {
	defer rows.Close()

	jobs := make([]*model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// likePattern 转义 LIKE 通配符后包成子串匹配
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// ListOpen returns open jobs newest first. An empty query or category matches everything.
func (r *JobRepository) ListOpen(ctx context.Context, f model.JobFilter) ([]*model.Job, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+jobFrom+`
		WHERE j.status = 'open'
		AND ($1::text = '' OR j.title ILIKE $2 OR j.description ILIKE $2)
		AND ($3::text = '' OR j.category = $3)
		ORDER BY j.created_at DESC
	`, f.Query, likePattern(f.Query), f.Category)
	if err != nil {
		return nil, mapError("list open jobs", err)
	}
	jobs, err := collectJobs(rows)
	return jobs, mapError("list open jobs", err)
}

func (r *JobRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.Job, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+jobFrom+`
		WHERE j.client_id = $1
		ORDER BY j.created_at DESC
	`, clientID)
	if err != nil {
		return nil, mapError("list client jobs", err)
	}
	jobs, err := collectJobs(rows)
	return jobs, mapError("list client jobs", err)
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+jobFrom+` WHERE j.id = $1`, id))
	if err != nil {
		return nil, mapError("get job", err)
	}
	return j, nil
}

// Create 插入职位并写入 job.posted 事件
func (r *JobRepository) Create(ctx context.Context, j *model.Job) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO jobs (client_id, title, description, category, budget_min, budget_max, deadline, skills_required, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'open')
		RETURNING id, status, proposals_count, created_at, updated_at
	`,
		j.ClientID,
		j.Title,
		j.Description,
		j.Category,
		j.BudgetMin,
		j.BudgetMax,
		j.Deadline,
		nullableSlice(j.SkillsRequired),
	).Scan(&j.ID, &j.Status, &j.ProposalsCount, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return mapError("insert job", err)
	}

	payload := mqcontracts.JobPostedPayload{
		Envelope: newEnvelope(ctx),
		JobID:    j.ID.String(),
		ClientID: j.ClientID.String(),
		Title:    j.Title,
		Category: j.Category,
	}
	if err := outbox.Record(ctx, tx, r.outbox, outbox.Aggregate{Type: "job", ID: j.ID.String()}, mqcontracts.RoutingJobPosted, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountOpenByClient 客户仍在招募中的职位数
func (r *JobRepository) CountOpenByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE client_id = $1 AND status = 'open'`, clientID).Scan(&n)
	return n, mapError("count open jobs", err)
}
