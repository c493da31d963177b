package handler

import (
	"context"
	"net/http"

	"skillfund/internal/model"
	"skillfund/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type JobService interface {
	List(ctx context.Context, f model.JobFilter) ([]*service.JobView, error)
	Get(ctx context.Context, id uuid.UUID) (*service.JobView, error)
	ListMine(ctx context.Context, actor service.Actor) ([]*service.JobView, error)
	Post(ctx context.Context, actor service.Actor, in service.PostJobInput) (*service.JobView, error)
	SubmitProposal(ctx context.Context, actor service.Actor, jobID uuid.UUID, in service.ProposalInput) (*model.Proposal, error)
	ListJobProposals(ctx context.Context, actor service.Actor, jobID uuid.UUID) ([]*model.Proposal, error)
	ListMyProposals(ctx context.Context, actor service.Actor) ([]*model.Proposal, error)
	DecideProposal(ctx context.Context, actor service.Actor, proposalID uuid.UUID, status string) (*model.Proposal, error)
}

type JobHandler struct {
	jobs   JobService
	logger *zap.Logger
}

func NewJobHandler(jobs JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger}
}

// ListJobs handles GET /api/jobs?q=&category=
func (h *JobHandler) ListJobs(c *gin.Context) {
	f := service.NormalizeJobFilter(c.Query("q"), c.Query("category"))
	jobs, err := h.jobs.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":       jobs,
		"categories": model.JobCategories,
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (h *JobHandler) ListMyJobs(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.ListMine(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// PostJob handles POST /api/jobs
func (h *JobHandler) PostJob(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req service.PostJobInput
	if !bindJSON(c, &req) {
		return
	}

	job, err := h.jobs.Post(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err, service.MsgJobPostFailed)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": job, "message": service.MsgJobPosted})
}

// SubmitProposal handles POST /api/jobs/:id/proposals
func (h *JobHandler) SubmitProposal(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ProposalInput
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.jobs.SubmitProposal(c.Request.Context(), actor, jobID, req)
	if err != nil {
		respondError(c, h.logger, err, service.MsgProposalFailed)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": p, "message": service.MsgProposalSent})
}

func (h *JobHandler) ListJobProposals(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.jobs.ListJobProposals(c.Request.Context(), actor, jobID)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch proposals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": list})
}

func (h *JobHandler) ListMyProposals(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	list, err := h.jobs.ListMyProposals(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch proposals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": list})
}

// DecideProposal handles POST /api/proposals/:id/status
func (h *JobHandler) DecideProposal(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.jobs.DecideProposal(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		respondError(c, h.logger, err, "failed to update proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": p})
}
