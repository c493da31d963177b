package service

import (
	"context"
	"testing"

	"skillfund/internal/cache"
	"skillfund/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type jobFixture struct {
	svc       *JobService
	jobs      *fakeJobs
	proposals *fakeProposals
	cache     *memCache
	client    Actor
	freelance Actor
}

func newJobFixture() *jobFixture {
	jobs := &fakeJobs{}
	proposals := &fakeProposals{jobs: jobs}
	c := newMemCache()
	return &jobFixture{
		svc:       NewJobService(jobs, proposals, c, zap.NewNop()),
		jobs:      jobs,
		proposals: proposals,
		cache:     c,
		client:    Actor{ID: uuid.New(), Role: "client"},
		freelance: Actor{ID: uuid.New(), Role: "freelancer"},
	}
}

func (f *jobFixture) post(t *testing.T, title, category string) *JobView {
	t.Helper()
	j, err := f.svc.Post(context.Background(), f.client, PostJobInput{
		Title:       title,
		Description: "Description of " + title,
		Category:    category,
	})
	require.NoError(t, err)
	return j
}

func TestPostJobNormalizes(t *testing.T) {
	f := newJobFixture()

	j, err := f.svc.Post(context.Background(), f.client, PostJobInput{
		Title:          "  Build a REST API ",
		Description:    "Go service",
		Category:       "Web Development",
		BudgetMin:      ptr(0.0),
		BudgetMax:      ptr(900.0),
		Deadline:       "2030-01-15",
		SkillsRequired: []string{" Go", "", "PostgreSQL", "Go", "Docker", "Redis"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Build a REST API", j.Title)
	assert.Nil(t, j.BudgetMin)
	assert.Equal(t, 900.0, *j.BudgetMax)
	assert.Equal(t, "2030-01-15", j.Deadline.Format("2006-01-02"))
	assert.Equal(t, []string{"Go", "PostgreSQL", "Docker", "Redis"}, j.SkillsRequired)
	assert.Equal(t, "Up to $900", j.BudgetLabel)
	assert.Equal(t, []string{"Go", "PostgreSQL", "Docker"}, j.SkillBadges)
	assert.Equal(t, "+1 more", j.MoreSkills)
	assert.Equal(t, model.JobStatusOpen, j.Status)
	assert.Contains(t, f.cache.invalidated, cache.NamespaceOpenJobs)
}

func TestPostJobEmptySkillsBecomeNil(t *testing.T) {
	f := newJobFixture()
	j, err := f.svc.Post(context.Background(), f.client, PostJobInput{
		Title: "Logo", Description: "Need a logo", Category: "Design", SkillsRequired: []string{" ", ""},
	})
	require.NoError(t, err)
	assert.Nil(t, j.SkillsRequired)
	assert.Equal(t, []string{}, j.SkillBadges)
	assert.Equal(t, "Budget not specified", j.BudgetLabel)
}

func TestPostJobValidation(t *testing.T) {
	f := newJobFixture()

	_, err := f.svc.Post(context.Background(), f.client, PostJobInput{
		Category:  "Gardening",
		BudgetMin: ptr(500.0),
		BudgetMax: ptr(100.0),
		Deadline:  "15/01/2030",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "description", "category", "budget_max", "deadline"} {
		assert.Contains(t, verr.Fields, field)
	}
	assert.Zero(t, f.jobs.created)

	_, err = f.svc.Post(context.Background(), f.client, PostJobInput{
		Title: "t", Description: "d", Category: "Other",
		BudgetMin: ptr(0.125), BudgetMax: ptr(2e10),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "budget_min must not have more than 2 decimal places", verr.Fields["budget_min"])
	assert.Equal(t, "budget_max must not exceed $9,999,999,999.99", verr.Fields["budget_max"])
}

func TestPostJobRequiresClient(t *testing.T) {
	f := newJobFixture()
	_, err := f.svc.Post(context.Background(), f.freelance, PostJobInput{Title: "x", Description: "y", Category: "Other"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListJobsFiltersAndCaches(t *testing.T) {
	f := newJobFixture()
	f.post(t, "React dashboard", "Web Development")
	f.post(t, "iOS app", "Mobile Development")
	f.post(t, "Landing page in React", "Design")

	all, err := f.svc.List(context.Background(), NormalizeJobFilter("", "all"))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Landing page in React", all[0].Title, "newest first")
	assert.Equal(t, anonymousClientName, all[0].Client.FullName)
	assert.Equal(t, unspecifiedLocation, all[0].Client.Location)

	react, err := f.svc.List(context.Background(), NormalizeJobFilter(" REACT ", ""))
	require.NoError(t, err)
	assert.Len(t, react, 2)

	web, err := f.svc.List(context.Background(), NormalizeJobFilter("react", "Web Development"))
	require.NoError(t, err)
	require.Len(t, web, 1)
	assert.Equal(t, "React dashboard", web[0].Title)

	listed := f.jobs.listed
	_, err = f.svc.List(context.Background(), NormalizeJobFilter("react", "Web Development"))
	require.NoError(t, err)
	assert.Equal(t, listed, f.jobs.listed, "second identical query served from cache")
}

func TestSubmitProposal(t *testing.T) {
	f := newJobFixture()
	j := f.post(t, "API", "Web Development")
	ctx := context.Background()

	p, err := f.svc.SubmitProposal(ctx, f.freelance, j.ID, ProposalInput{
		CoverLetter:  "I have done this before",
		ProposedRate: ptr(45.0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusPending, p.Status)
	assert.Nil(t, p.EstimatedDuration)
	assert.Equal(t, 1, j.ProposalsCount)

	_, err = f.svc.SubmitProposal(ctx, f.freelance, j.ID, ProposalInput{CoverLetter: "again", ProposedRate: ptr(40.0)})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.SubmitProposal(ctx, f.freelance, uuid.New(), ProposalInput{CoverLetter: "x", ProposedRate: ptr(1.0)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitProposalValidation(t *testing.T) {
	f := newJobFixture()
	j := f.post(t, "API", "Web Development")

	_, err := f.svc.SubmitProposal(context.Background(), f.freelance, j.ID, ProposalInput{CoverLetter: "  ", ProposedRate: ptr(0.0)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "cover_letter")
	assert.Contains(t, verr.Fields, "proposed_rate")

	_, err = f.svc.SubmitProposal(context.Background(), f.freelance, j.ID, ProposalInput{CoverLetter: "x", ProposedRate: ptr(1e12)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "proposed rate must not exceed $9,999,999,999.99", verr.Fields["proposed_rate"])

	_, err = f.svc.SubmitProposal(context.Background(), f.client, j.ID, ProposalInput{CoverLetter: "x", ProposedRate: ptr(5.0)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDecideProposalAcceptStartsJob(t *testing.T) {
	f := newJobFixture()
	ctx := context.Background()
	j := f.post(t, "API", "Web Development")
	p, err := f.svc.SubmitProposal(ctx, f.freelance, j.ID, ProposalInput{CoverLetter: "hi", ProposedRate: ptr(30.0)})
	require.NoError(t, err)

	other := Actor{ID: uuid.New(), Role: "client"}
	_, err = f.svc.DecideProposal(ctx, other, p.ID, model.ProposalStatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.DecideProposal(ctx, f.client, p.ID, "maybe")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	got, err := f.svc.DecideProposal(ctx, f.client, p.ID, model.ProposalStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusAccepted, got.Status)
	assert.Equal(t, model.JobStatusInProgress, j.Status)

	_, err = f.svc.DecideProposal(ctx, f.client, p.ID, model.ProposalStatusRejected)
	assert.ErrorIs(t, err, ErrConflict)

	// 职位已不再开放
	late := Actor{ID: uuid.New(), Role: "freelancer"}
	_, err = f.svc.SubmitProposal(ctx, late, j.ID, ProposalInput{CoverLetter: "late", ProposedRate: ptr(10.0)})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListJobProposalsOwnerOnly(t *testing.T) {
	f := newJobFixture()
	ctx := context.Background()
	j := f.post(t, "API", "Web Development")
	_, err := f.svc.SubmitProposal(ctx, f.freelance, j.ID, ProposalInput{CoverLetter: "hi", ProposedRate: ptr(30.0)})
	require.NoError(t, err)

	list, err := f.svc.ListJobProposals(ctx, f.client, j.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListJobProposals(ctx, f.freelance, j.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.ListMyProposals(ctx, f.freelance)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, "API", mine[0].JobTitle)
}
