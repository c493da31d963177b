package service

import (
	"context"
	"fmt"
	"math"

	"skillfund/internal/model"
	"skillfund/internal/repository"
	"skillfund/pkg/rbac"

	"golang.org/x/sync/errgroup"
)

const recentActivityLimit = 5

type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type QuickAction struct {
	Label   string `json:"label"`
	Path    string `json:"path"`
	Primary bool   `json:"primary"`
}

type NavItem struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

type Dashboard struct {
	Greeting       string                `json:"greeting"`
	Role           string                `json:"role"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Stats          []Stat                `json:"stats"`
	QuickActions   []QuickAction         `json:"quick_actions"`
	RecentActivity []*model.Notification `json:"recent_activity"`
	Nav            []NavItem             `json:"nav"`
}

type roleContent struct {
	title       string
	description string
	actions     []QuickAction
}

var roleContents = map[string]roleContent{
	rbac.RoleFreelancer: {
		title:       "Find Your Next Opportunity",
		description: "Browse jobs that match your skills",
		actions: []QuickAction{
			{Label: "Browse Jobs", Path: "/jobs", Primary: true},
			{Label: "View Proposals", Path: "/proposals"},
		},
	},
	rbac.RoleClient: {
		title:       "Hire Top Talent",
		description: "Find skilled freelancers for your projects",
		actions: []QuickAction{
			{Label: "Post New Job", Path: "/post-job", Primary: true},
			{Label: "Manage Jobs", Path: "/my-jobs"},
		},
	},
	rbac.RoleProjectOwner: {
		title:       "Launch Your Campaign",
		description: "Turn your ideas into reality with crowdfunding",
		actions: []QuickAction{
			{Label: "Create Campaign", Path: "/create-campaign", Primary: true},
			{Label: "My Campaigns", Path: "/my-campaigns"},
		},
	},
	rbac.RoleBacker: {
		title:       "Support Innovation",
		description: "Discover and back amazing projects",
		actions: []QuickAction{
			{Label: "Explore Projects", Path: "/campaigns", Primary: true},
			{Label: "My Contributions", Path: "/my-contributions"},
		},
	},
}

var defaultContent = roleContent{
	title:       "Welcome to SkillFund",
	description: "Your gateway to freelancing and crowdfunding",
}

var navItems = []NavItem{
	{Label: "Home", Path: "/dashboard"},
	{Label: "Find Work", Path: "/jobs"},
	{Label: "Projects", Path: "/campaigns"},
	{Label: "Messages", Path: "/messages"},
	{Label: "Profile", Path: "/profile"},
}

// Nav 底部导航，与当前路径相同的条目为 active
func Nav(currentPath string) []NavItem {
	out := make([]NavItem, len(navItems))
	for i, item := range navItems {
		item.Active = item.Path == currentPath
		out[i] = item
	}
	return out
}

type DashboardService struct {
	profiles      ProfileStore
	jobs          JobStore
	proposals     ProposalStore
	campaigns     CampaignStore
	notifications NotificationStore
}

func NewDashboardService(
	profiles ProfileStore,
	jobs JobStore,
	proposals ProposalStore,
	campaigns CampaignStore,
	notifications NotificationStore,
) *DashboardService {
	return &DashboardService{
		profiles:      profiles,
		jobs:          jobs,
		proposals:     proposals,
		campaigns:     campaigns,
		notifications: notifications,
	}
}

// Build assembles the dashboard. Profile, role stats and recent activity are
// loaded concurrently.
func (s *DashboardService) Build(ctx context.Context, actor Actor) (*Dashboard, error) {
	var (
		profile *model.Profile
		stats   []Stat
		recent  []*model.Notification
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetByID(gctx, actor.ID)
		if err != nil {
			return translate(err, "profile not found")
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = s.stats(gctx, actor)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.notifications.ListByUser(gctx, actor.ID, recentActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 以数据库中的角色为准
	role := profile.PrimaryRole
	if role != actor.Role {
		var err error
		if stats, err = s.stats(ctx, Actor{ID: actor.ID, Role: role}); err != nil {
			return nil, err
		}
	}
	if role == rbac.RoleFreelancer {
		stats[1].Value = "$" + plainNumber(profile.TotalEarned)
	}

	content, ok := roleContents[role]
	if !ok {
		content = defaultContent
	}
	actions := content.actions
	if actions == nil {
		actions = []QuickAction{}
	}
	if stats == nil {
		stats = []Stat{}
	}

	return &Dashboard{
		Greeting:       fmt.Sprintf("Welcome back, %s!", FirstName(model.Str(profile.FullName))),
		Role:           role,
		Title:          content.title,
		Description:    content.description,
		Stats:          stats,
		QuickActions:   actions,
		RecentActivity: recent,
		Nav:            Nav("/dashboard"),
	}, nil
}

func (s *DashboardService) stats(ctx context.Context, actor Actor) ([]Stat, error) {
	switch actor.Role {
	case rbac.RoleFreelancer:
		fs, err := s.proposals.FreelancerStats(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return []Stat{
			{Label: "Active Applications", Value: fmt.Sprint(fs.Pending)},
			{Label: "Total Earned", Value: "$0"},
			{Label: "Success Rate", Value: successRate(fs.Accepted, fs.Decided)},
		}, nil

	case rbac.RoleClient:
		var (
			open int
			cs   repository.ClientStats
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			open, err = s.jobs.CountOpenByClient(gctx, actor.ID)
			return err
		})
		g.Go(func() error {
			var err error
			cs, err = s.proposals.ClientStats(gctx, actor.ID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return []Stat{
			{Label: "Active Jobs", Value: fmt.Sprint(open)},
			{Label: "Pending Proposals", Value: fmt.Sprint(cs.PendingProposals)},
			{Label: "Total Spent", Value: FormatAmount(cs.TotalSpent)},
		}, nil

	case rbac.RoleProjectOwner:
		ow, err := s.campaigns.OwnerStats(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return []Stat{
			{Label: "Active Campaigns", Value: fmt.Sprint(ow.ActiveCampaigns)},
			{Label: "Total Backers", Value: fmt.Sprint(ow.TotalBackers)},
			{Label: "Funds Raised", Value: FormatAmount(ow.FundsRaised)},
		}, nil

	case rbac.RoleBacker:
		bs, err := s.campaigns.BackerStats(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return []Stat{
			{Label: "Projects Backed", Value: fmt.Sprint(bs.ProjectsBacked)},
			{Label: "Total Contributed", Value: FormatAmount(bs.TotalContributed)},
			{Label: "Successful Projects", Value: fmt.Sprintf("%d/%d", bs.FundedProjects, bs.ProjectsBacked)},
		}, nil
	}
	return nil, nil
}

func successRate(accepted, decided int) string {
	if decided == 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(accepted)/float64(decided)*100)))
}
