package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"skillfund/internal/cache"
	"skillfund/internal/model"
	"skillfund/internal/repository"
	"skillfund/pkg/metrics"
	"skillfund/pkg/rbac"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MsgJobPosted        = "Job posted successfully!"
	MsgJobPostFailed    = "Failed to post job. Please try again."
	MsgProposalSent     = "Proposal submitted successfully!"
	MsgProposalFailed   = "Failed to submit proposal. Please try again."
	anonymousClientName = "Anonymous Client"
	unspecifiedLocation = "Not specified"
	allCategories       = "all"
)

type JobStore interface {
	ListOpen(ctx context.Context, f model.JobFilter) ([]*model.Job, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	Create(ctx context.Context, j *model.Job) error
	CountOpenByClient(ctx context.Context, clientID uuid.UUID) (int, error)
}

type ProposalStore interface {
	Create(ctx context.Context, p *model.Proposal) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Proposal, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*model.Proposal, error)
	UpdateStatus(ctx context.Context, proposalID, clientID uuid.UUID, status string) (*model.Proposal, error)
	FreelancerStats(ctx context.Context, freelancerID uuid.UUID) (repository.FreelancerStats, error)
	ClientStats(ctx context.Context, clientID uuid.UUID) (repository.ClientStats, error)
}

// Cache is the listing cache used by job and campaign listings.
type Cache interface {
	Get(ctx context.Context, namespace, variant string, dst any) (cache.Generation, bool)
	Set(ctx context.Context, namespace, variant string, gen cache.Generation, v any)
	Invalidate(ctx context.Context, namespace string)
}

// Actor 是当前请求的用户
type Actor struct {
	ID   uuid.UUID
	Role string
}

// JobView 职位卡片
type JobView struct {
	*model.Job
	BudgetLabel string   `json:"budget_label"`
	SkillBadges []string `json:"skill_badges"`
	MoreSkills  string   `json:"more_skills,omitempty"`
}

func newJobView(j *model.Job) *JobView {
	if j.Client == nil {
		j.Client = &model.UserSummary{ID: j.ClientID}
	}
	if j.Client.FullName == "" {
		j.Client.FullName = anonymousClientName
	}
	if j.Client.Location == "" {
		j.Client.Location = unspecifiedLocation
	}

	badges, more := SkillBadges(j.SkillsRequired)
	if badges == nil {
		badges = []string{}
	}
	return &JobView{
		Job:         j,
		BudgetLabel: BudgetLabel(j.BudgetMin, j.BudgetMax),
		SkillBadges: badges,
		MoreSkills:  more,
	}
}

func jobViews(jobs []*model.Job) []*JobView {
	out := make([]*JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobView(j))
	}
	return out
}

type JobService struct {
	jobs      JobStore
	proposals ProposalStore
	cache     Cache
	logger    *zap.Logger
}

func NewJobService(jobs JobStore, proposals ProposalStore, c Cache, logger *zap.Logger) *JobService {
	if c == nil {
		c = cache.Noop{}
	}
	return &JobService{jobs: jobs, proposals: proposals, cache: c, logger: logger}
}

// NormalizeJobFilter trims the query; "all" and empty categories match everything.
func NormalizeJobFilter(q, category string) model.JobFilter {
	category = strings.TrimSpace(category)
	if strings.EqualFold(category, allCategories) {
		category = ""
	}
	return model.JobFilter{Query: strings.TrimSpace(q), Category: category}
}

// List returns open jobs newest first, filtered by search text and category.
func (s *JobService) List(ctx context.Context, f model.JobFilter) ([]*JobView, error) {
	variant := "q=" + strings.ToLower(f.Query) + "|c=" + f.Category

	var jobs []*model.Job
	if gen, ok := s.cache.Get(ctx, cache.NamespaceOpenJobs, variant, &jobs); !ok {
		var err error
		jobs, err = s.jobs.ListOpen(ctx, f)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, cache.NamespaceOpenJobs, variant, gen, jobs)
	}
	return jobViews(jobs), nil
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*JobView, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "job not found")
	}
	return newJobView(j), nil
}

func (s *JobService) ListMine(ctx context.Context, actor Actor) ([]*JobView, error) {
	jobs, err := s.jobs.ListByClient(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return jobViews(jobs), nil
}

type PostJobInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	BudgetMin      *float64 `json:"budget_min"`
	BudgetMax      *float64 `json:"budget_max"`
	Deadline       string   `json:"deadline"`
	SkillsRequired []string `json:"skills_required"`
}

func (in PostJobInput) normalize() (*model.Job, error) {
	var v validator
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)

	v.check(title != "", "title", "title is required")
	v.check(description != "", "description", "description is required")
	v.check(category != "", "category", "category is required")
	v.check(category == "" || slices.Contains(model.JobCategories, category), "category", "category is invalid")

	budgetMin, budgetMax := zeroAsNil(in.BudgetMin), zeroAsNil(in.BudgetMax)
	v.check(budgetMin == nil || *budgetMin > 0, "budget_min", "budget_min must be positive")
	v.check(budgetMax == nil || *budgetMax > 0, "budget_max", "budget_max must be positive")
	v.check(budgetMin == nil || budgetMax == nil || *budgetMin <= *budgetMax, "budget_max", "budget_max must not be less than budget_min")
	v.money("budget_min", "budget_min", budgetMin)
	v.money("budget_max", "budget_max", budgetMax)

	deadline, ok := parseDate(in.Deadline)
	v.check(ok, "deadline", "deadline must be YYYY-MM-DD")

	if err := v.err(); err != nil {
		return nil, err
	}
	return &model.Job{
		Title:          title,
		Description:    description,
		Category:       category,
		BudgetMin:      budgetMin,
		BudgetMax:      budgetMax,
		Deadline:       deadline,
		SkillsRequired: NormalizeSkills(in.SkillsRequired),
	}, nil
}

func zeroAsNil(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// Post creates an open job for a client.
func (s *JobService) Post(ctx context.Context, actor Actor, in PostJobInput) (*JobView, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionPostJob); err != nil {
		return nil, forbidden("only clients can post jobs")
	}
	j, err := in.normalize()
	if err != nil {
		return nil, err
	}
	j.ClientID = actor.ID

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.NamespaceOpenJobs)
	metrics.IncrementDomainEvent("job_posted")
	s.logger.Info("Job posted", zap.String("job_id", j.ID.String()), zap.String("client_id", actor.ID.String()))
	return newJobView(j), nil
}

type ProposalInput struct {
	CoverLetter       string   `json:"cover_letter"`
	ProposedRate      *float64 `json:"proposed_rate"`
	EstimatedDuration string   `json:"estimated_duration"`
}

// SubmitProposal 自由职业者对开放职位投标，每个职位只能投一次
func (s *JobService) SubmitProposal(ctx context.Context, actor Actor, jobID uuid.UUID, in ProposalInput) (*model.Proposal, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionSubmitProposal); err != nil {
		return nil, forbidden("only freelancers can submit proposals")
	}

	var v validator
	coverLetter := strings.TrimSpace(in.CoverLetter)
	v.check(coverLetter != "", "cover_letter", "cover letter is required")
	v.check(in.ProposedRate != nil, "proposed_rate", "proposed rate is required")
	v.check(in.ProposedRate == nil || *in.ProposedRate > 0, "proposed_rate", "proposed rate must be greater than 0")
	v.money("proposed_rate", "proposed rate", in.ProposedRate)
	if err := v.err(); err != nil {
		return nil, err
	}

	p := &model.Proposal{
		JobID:             jobID,
		FreelancerID:      actor.ID,
		CoverLetter:       coverLetter,
		ProposedRate:      *in.ProposedRate,
		EstimatedDuration: optionalString(in.EstimatedDuration),
	}
	if err := s.proposals.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, conflict("you have already submitted a proposal for this job")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, conflict("this job is no longer accepting proposals")
		}
		return nil, translate(err, "job not found")
	}

	s.cache.Invalidate(ctx, cache.NamespaceOpenJobs)
	metrics.IncrementDomainEvent("proposal_submitted")
	s.logger.Info("Proposal submitted",
		zap.String("proposal_id", p.ID.String()),
		zap.String("job_id", jobID.String()),
	)
	return p, nil
}

// ListJobProposals is allowed to the job's client only.
func (s *JobService) ListJobProposals(ctx context.Context, actor Actor, jobID uuid.UUID) ([]*model.Proposal, error) {
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, translate(err, "job not found")
	}
	if j.ClientID != actor.ID {
		return nil, forbidden("only the job's client can view its proposals")
	}
	return s.proposals.ListByJob(ctx, jobID)
}

func (s *JobService) ListMyProposals(ctx context.Context, actor Actor) ([]*model.Proposal, error) {
	return s.proposals.ListByFreelancer(ctx, actor.ID)
}

// DecideProposal accepts or rejects a pending proposal on one of the actor's jobs.
func (s *JobService) DecideProposal(ctx context.Context, actor Actor, proposalID uuid.UUID, status string) (*model.Proposal, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionReviewProposal); err != nil {
		return nil, forbidden("only clients can review proposals")
	}

	var v validator
	v.check(status == model.ProposalStatusAccepted || status == model.ProposalStatusRejected,
		"status", "status must be accepted or rejected")
	if err := v.err(); err != nil {
		return nil, err
	}

	p, err := s.proposals.UpdateStatus(ctx, proposalID, actor.ID, status)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidState) {
			return nil, conflict("proposal can no longer be " + status)
		}
		return nil, translate(err, "proposal not found")
	}

	if status == model.ProposalStatusAccepted {
		s.cache.Invalidate(ctx, cache.NamespaceOpenJobs)
	}
	metrics.IncrementDomainEvent("proposal_" + status)
	return p, nil
}
