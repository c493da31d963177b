package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"skillfund/internal/model"
	"skillfund/internal/repository"
	"skillfund/pkg/rbac"
	"skillfund/pkg/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 6

type UserStore interface {
	CreateWithProfile(ctx context.Context, u *model.User, p *model.Profile) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	Update(ctx context.Context, id uuid.UUID, u model.ProfileUpdate) (*model.Profile, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type AuthService struct {
	users    UserStore
	profiles ProfileStore
	secret   string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewAuthService(users UserStore, profiles ProfileStore, secret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		profiles: profiles,
		secret:   secret,
		ttl:      ttl,
		logger:   logger,
	}
}

type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PrimaryRole string `json:"primary_role"`
}

type AuthResult struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
}

// 邮箱统一小写存储, 唯一约束在 lower(email) 上
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Signup creates the account and its profile and returns a session token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)

	var v validator
	v.check(in.Email != "", "email", "email is required")
	v.check(in.Email == "" || validEmail(in.Email), "email", "email is invalid")
	v.check(len(in.Password) >= minPasswordLength, "password", "password must be at least 6 characters")
	v.check(in.PrimaryRole != "", "primary_role", "role is required")
	v.check(in.PrimaryRole == "" || rbac.IsValidRole(in.PrimaryRole), "primary_role", "role is invalid")
	if err := v.err(); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{Email: in.Email, PasswordHash: hash}
	p := &model.Profile{FullName: optionalString(in.FullName), PrimaryRole: in.PrimaryRole}
	if err := s.users.CreateWithProfile(ctx, u, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("email already exists")
		}
		return nil, err
	}

	s.logger.Info("User signed up", zap.String("user_id", u.ID.String()), zap.String("role", p.PrimaryRole))
	return s.issue(p)
}

// Login checks user credentials and returns JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	p, err := s.profiles.GetByID(ctx, u.ID)
	if err != nil {
		return nil, translate(err, "profile not found")
	}
	return s.issue(p)
}

// Issue signs a token for the profile's current role.
func (s *AuthService) Issue(p *model.Profile) (string, error) {
	return util.GenerateJWT(p.ID, p.PrimaryRole, s.secret, s.ttl)
}

func (s *AuthService) issue(p *model.Profile) (*AuthResult, error) {
	token, err := s.Issue(p)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Profile: p}, nil
}
