package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"skillfund/internal/cache"
	"skillfund/internal/model"
	"skillfund/internal/repository"

	"github.com/google/uuid"
)

type fakeUsers struct {
	mu       sync.Mutex
	byEmail  map[string]*model.User
	profiles *fakeProfiles
}

func newFakeUsers(profiles *fakeProfiles) *fakeUsers {
	return &fakeUsers{byEmail: map[string]*model.User{}, profiles: profiles}
}

func (f *fakeUsers) CreateWithProfile(_ context.Context, u *model.User, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := u.Email
	for existing := range f.byEmail {
		if strings.EqualFold(existing, key) {
			return repository.ErrDuplicate
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	f.byEmail[key] = u
	p.ID, p.Email = u.ID, u.Email
	f.profiles.put(p)
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for existing, u := range f.byEmail {
		if strings.EqualFold(existing, email) {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeProfiles struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: map[uuid.UUID]*model.Profile{}}
}

func (f *fakeProfiles) put(p *model.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
}

func (f *fakeProfiles) add(name, role string) *model.Profile {
	p := &model.Profile{ID: uuid.New(), PrimaryRole: role}
	if name != "" {
		p.FullName = &name
	}
	f.put(p)
	return p
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) Update(_ context.Context, id uuid.UUID, u model.ProfileUpdate) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.FullName, p.Bio, p.Location, p.Website = u.FullName, u.Bio, u.Location, u.Website
	p.PrimaryRole, p.HourlyRate, p.Skills, p.Interests = u.PrimaryRole, u.HourlyRate, u.Skills, u.Interests
	return p, nil
}

func (f *fakeProfiles) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok, nil
}

type fakeJobs struct {
	mu      sync.Mutex
	jobs    []*model.Job
	listed  int
	created int
}

func (f *fakeJobs) ListOpen(_ context.Context, flt model.JobFilter) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	q := strings.ToLower(flt.Query)
	out := []*model.Job{}
	for i := len(f.jobs) - 1; i >= 0; i-- {
		j := f.jobs[i]
		if j.Status != model.JobStatusOpen {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(j.Title), q) && !strings.Contains(strings.ToLower(j.Description), q) {
			continue
		}
		if flt.Category != "" && j.Category != flt.Category {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobs) ListByClient(_ context.Context, clientID uuid.UUID) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Job{}
	for _, j := range f.jobs {
		if j.ClientID == clientID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeJobs) Create(_ context.Context, j *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j.ID = uuid.New()
	j.Status = model.JobStatusOpen
	j.CreatedAt = time.Now()
	f.jobs = append(f.jobs, j)
	f.created++
	return nil
}

func (f *fakeJobs) CountOpenByClient(_ context.Context, clientID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.ClientID == clientID && j.Status == model.JobStatusOpen {
			n++
		}
	}
	return n, nil
}

type fakeProposals struct {
	mu        sync.Mutex
	jobs      *fakeJobs
	proposals []*model.Proposal
}

func (f *fakeProposals) Create(ctx context.Context, p *model.Proposal) error {
	j, err := f.jobs.GetByID(ctx, p.JobID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if j.Status != model.JobStatusOpen {
		return repository.ErrInvalidState
	}
	for _, existing := range f.proposals {
		if existing.JobID == p.JobID && existing.FreelancerID == p.FreelancerID {
			return repository.ErrDuplicate
		}
	}
	p.ID = uuid.New()
	p.Status = model.ProposalStatusPending
	p.JobTitle = j.Title
	f.proposals = append(f.proposals, p)
	j.ProposalsCount++
	return nil
}

func (f *fakeProposals) ListByJob(_ context.Context, jobID uuid.UUID) ([]*model.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Proposal{}
	for _, p := range f.proposals {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProposals) ListByFreelancer(_ context.Context, freelancerID uuid.UUID) ([]*model.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Proposal{}
	for _, p := range f.proposals {
		if p.FreelancerID == freelancerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProposals) UpdateStatus(ctx context.Context, proposalID, clientID uuid.UUID, status string) (*model.Proposal, error) {
	f.mu.Lock()
	var target *model.Proposal
	for _, p := range f.proposals {
		if p.ID == proposalID {
			target = p
		}
	}
	f.mu.Unlock()
	if target == nil {
		return nil, repository.ErrNotFound
	}
	j, err := f.jobs.GetByID(ctx, target.JobID)
	if err != nil {
		return nil, err
	}
	if j.ClientID != clientID {
		return nil, repository.ErrNotOwner
	}
	if target.Status != model.ProposalStatusPending {
		return nil, repository.ErrInvalidState
	}
	target.Status = status
	if status == model.ProposalStatusAccepted {
		j.Status = model.JobStatusInProgress
	}
	return target, nil
}

func (f *fakeProposals) FreelancerStats(_ context.Context, freelancerID uuid.UUID) (repository.FreelancerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s repository.FreelancerStats
	for _, p := range f.proposals {
		if p.FreelancerID != freelancerID {
			continue
		}
		switch p.Status {
		case model.ProposalStatusPending:
			s.Pending++
		case model.ProposalStatusAccepted:
			s.Accepted++
			s.Decided++
		case model.ProposalStatusRejected:
			s.Decided++
		}
	}
	return s, nil
}

func (f *fakeProposals) ClientStats(ctx context.Context, clientID uuid.UUID) (repository.ClientStats, error) {
	var s repository.ClientStats
	f.mu.Lock()
	list := append([]*model.Proposal(nil), f.proposals...)
	f.mu.Unlock()
	for _, p := range list {
		j, err := f.jobs.GetByID(ctx, p.JobID)
		if err != nil || j.ClientID != clientID {
			continue
		}
		switch p.Status {
		case model.ProposalStatusPending:
			s.PendingProposals++
		case model.ProposalStatusAccepted:
			s.TotalSpent += p.ProposedRate
		}
	}
	return s, nil
}

type fakeCampaigns struct {
	mu            sync.Mutex
	campaigns     []*model.Campaign
	contributions []*model.Contribution
	tiers         *fakeTiers
	listed        int
}

func (f *fakeCampaigns) ListActive(_ context.Context, query string) ([]*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	q := strings.ToLower(query)
	out := []*model.Campaign{}
	for i := len(f.campaigns) - 1; i >= 0; i-- {
		c := f.campaigns[i]
		if c.Status != model.CampaignStatusActive {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Title), q) && !strings.Contains(strings.ToLower(c.Description), q) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCampaigns) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range f.campaigns {
		if c.CreatorID == creatorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) GetByID(_ context.Context, id uuid.UUID) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCampaigns) Create(_ context.Context, c *model.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.Status = model.CampaignStatusActive
	f.campaigns = append(f.campaigns, c)
	return nil
}

func (f *fakeCampaigns) Back(ctx context.Context, k *model.Contribution) (*model.Campaign, error) {
	c, err := f.GetByID(ctx, k.CampaignID)
	if err != nil {
		return nil, err
	}
	if k.RewardTierID != nil && f.tiers != nil {
		if err := f.tiers.claim(*k.RewardTierID); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Status != model.CampaignStatusActive {
		return nil, repository.ErrInvalidState
	}
	c.CurrentAmount += k.Amount
	c.BackersCount++
	k.ID = uuid.New()
	k.PaymentStatus = model.PaymentStatusCompleted
	f.contributions = append(f.contributions, k)
	snapshot := *c
	return &snapshot, nil
}

func (f *fakeCampaigns) ListContributionsByBacker(_ context.Context, backerID uuid.UUID) ([]*model.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Contribution{}
	for _, k := range f.contributions {
		if k.BackerID == backerID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) OwnerStats(_ context.Context, creatorID uuid.UUID) (repository.OwnerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s repository.OwnerStats
	for _, c := range f.campaigns {
		if c.CreatorID != creatorID {
			continue
		}
		if c.Status == model.CampaignStatusActive {
			s.ActiveCampaigns++
		}
		s.TotalBackers += c.BackersCount
		s.FundsRaised += c.CurrentAmount
	}
	return s, nil
}

func (f *fakeCampaigns) BackerStats(_ context.Context, backerID uuid.UUID) (repository.BackerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s repository.BackerStats
	seen := map[uuid.UUID]bool{}
	for _, k := range f.contributions {
		if k.BackerID != backerID {
			continue
		}
		s.TotalContributed += k.Amount
		if seen[k.CampaignID] {
			continue
		}
		seen[k.CampaignID] = true
		s.ProjectsBacked++
		for _, c := range f.campaigns {
			if c.ID == k.CampaignID && c.CurrentAmount >= c.GoalAmount {
				s.FundedProjects++
			}
		}
	}
	return s, nil
}

type fakeTiers struct {
	mu    sync.Mutex
	tiers []*model.RewardTier
}

func (f *fakeTiers) claim(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tiers {
		if t.ID == id {
			if t.MaxBackers != nil && t.CurrentBackers >= *t.MaxBackers {
				return repository.ErrTierUnavailable
			}
			t.CurrentBackers++
			return nil
		}
	}
	return repository.ErrTierUnavailable
}

func (f *fakeTiers) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]*model.RewardTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.RewardTier{}
	for _, t := range f.tiers {
		if t.CampaignID == campaignID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTiers) GetByID(_ context.Context, id uuid.UUID) (*model.RewardTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tiers {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTiers) Create(_ context.Context, t *model.RewardTier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	f.tiers = append(f.tiers, t)
	return nil
}

type fakeMessages struct {
	mu       sync.Mutex
	messages []*model.Message
	profiles *fakeProfiles
	markErr  error
}

func (f *fakeMessages) ListContacts(_ context.Context, userID uuid.UUID, limit int) ([]*model.Contact, error) {
	f.profiles.mu.Lock()
	defer f.profiles.mu.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Contact{}
	for id, p := range f.profiles.byID {
		if id == userID {
			continue
		}
		c := &model.Contact{ID: id, FullName: model.Str(p.FullName), PrimaryRole: p.PrimaryRole}
		for _, m := range f.messages {
			between := (m.SenderID == userID && m.RecipientID == id) || (m.SenderID == id && m.RecipientID == userID)
			if !between {
				continue
			}
			at := m.CreatedAt
			c.LastMessage, c.LastMessageAt = m.Content, &at
			if m.SenderID == id && !m.IsRead {
				c.UnreadCount++
			}
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMessages) Conversation(_ context.Context, userID, contactID uuid.UUID) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Message{}
	for _, m := range f.messages {
		if (m.SenderID == userID && m.RecipientID == contactID) || (m.SenderID == contactID && m.RecipientID == userID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, userID, contactID uuid.UUID) (int64, error) {
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.SenderID == contactID && m.RecipientID == userID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) Create(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now().Add(time.Duration(len(f.messages)) * time.Millisecond)
	f.messages = append(f.messages, m)
	return nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items []*model.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = int64(len(f.items) + 1)
	f.items = append(f.items, n)
	return nil
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Notification{}
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id int64, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// memCache is an in-memory Cache used to observe hits and invalidation.
type memCache struct {
	mu          sync.Mutex
	data        map[string]map[string]any
	gens        map[string]cache.Generation
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string]map[string]any{}, gens: map[string]cache.Generation{}}
}

func (c *memCache) Get(_ context.Context, ns, variant string, dst any) (cache.Generation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[ns]
	v, ok := c.data[ns][variant]
	if !ok {
		return gen, false
	}
	switch d := dst.(type) {
	case *[]*model.Job:
		*d = v.([]*model.Job)
	case *[]*model.Campaign:
		*d = v.([]*model.Campaign)
	default:
		return gen, false
	}
	return gen, true
}

func (c *memCache) Set(_ context.Context, ns, variant string, gen cache.Generation, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gens[ns] {
		return
	}
	if c.data[ns] == nil {
		c.data[ns] = map[string]any{}
	}
	c.data[ns][variant] = v
}

func (c *memCache) Invalidate(_ context.Context, ns string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, ns)
	c.gens[ns]++
	c.invalidated = append(c.invalidated, ns)
}

type fakeIdem struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (f *fakeIdem) AcquireOnce(_ context.Context, scope, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	k := scope + ":" + key
	if f.held[k] {
		return false
	}
	f.held[k] = true
	return true
}

func (f *fakeIdem) Release(_ context.Context, scope, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, scope+":"+key)
	f.released = append(f.released, key)
}

func ptr[T any](v T) *T { return &v }
