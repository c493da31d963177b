package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"skillfund/internal/model"
	"skillfund/pkg/rbac"

	"go.uber.org/zap"
)

const (
	MsgProfileUpdated      = "Your profile has been successfully updated."
	MsgProfileUpdateFailed = "Failed to update profile. Please try again."
)

// TokenIssuer signs a fresh token after a role change.
type TokenIssuer interface {
	Issue(p *model.Profile) (string, error)
}

type ProfileService struct {
	profiles ProfileStore
	tokens   TokenIssuer
	logger   *zap.Logger
}

func NewProfileService(profiles ProfileStore, tokens TokenIssuer, logger *zap.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, tokens: tokens, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, actor Actor) (*model.Profile, error) {
	p, err := s.profiles.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, translate(err, "profile not found")
	}
	return p, nil
}

// NumberText holds a form value sent either as a JSON string or a JSON
// number. GET /api/profile returns hourly_rate as a number.
type NumberText string

func (n *NumberText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumberText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = NumberText(num.String())
	return nil
}

// ProfileInput mirrors the profile form. Skills and interests are comma
// separated; hourly_rate is the raw field text or a number.
type ProfileInput struct {
	FullName    string     `json:"full_name"`
	Bio         string     `json:"bio"`
	Location    string     `json:"location"`
	Website     string     `json:"website"`
	PrimaryRole string     `json:"primary_role"`
	HourlyRate  NumberText `json:"hourly_rate"`
	Skills      string     `json:"skills"`
	Interests   string     `json:"interests"`
}

func (in ProfileInput) normalize(currentRole string) (model.ProfileUpdate, error) {
	var v validator

	role := strings.TrimSpace(in.PrimaryRole)
	if role == "" {
		role = currentRole
	}
	v.check(rbac.IsValidRole(role), "primary_role", "role is invalid")

	var rate *float64
	if raw := strings.TrimSpace(string(in.HourlyRate)); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		v.check(err == nil, "hourly_rate", "hourly rate must be a number")
		v.check(err != nil || f >= 0, "hourly_rate", "hourly rate must not be negative")
		if err == nil {
			rate = &f
			v.money("hourly_rate", "hourly rate", rate)
		}
	}

	if err := v.err(); err != nil {
		return model.ProfileUpdate{}, err
	}
	return model.ProfileUpdate{
		FullName:    optionalString(in.FullName),
		Bio:         optionalString(in.Bio),
		Location:    optionalString(in.Location),
		Website:     optionalString(in.Website),
		PrimaryRole: role,
		HourlyRate:  rate,
		Skills:      ParseList(in.Skills),
		Interests:   ParseList(in.Interests),
	}, nil
}

type ProfileUpdateResult struct {
	Profile *model.Profile `json:"profile"`
	// Token is set when the role changed; the old token carries the old role.
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

func (s *ProfileService) Update(ctx context.Context, actor Actor, in ProfileInput) (*ProfileUpdateResult, error) {
	upd, err := in.normalize(actor.Role)
	if err != nil {
		return nil, err
	}

	p, err := s.profiles.Update(ctx, actor.ID, upd)
	if err != nil {
		return nil, translate(err, "profile not found")
	}

	res := &ProfileUpdateResult{Profile: p, Message: MsgProfileUpdated}
	if p.PrimaryRole != actor.Role {
		token, err := s.tokens.Issue(p)
		if err != nil {
			return nil, err
		}
		res.Token = token
		s.logger.Info("Profile role changed",
			zap.String("user_id", actor.ID.String()),
			zap.String("from", actor.Role),
			zap.String("to", p.PrimaryRole),
		)
	}
	return res, nil
}
