package repository

import (
	"context"

	"skillfund/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `
	id, email, full_name, avatar_url, bio, location, website, primary_role, hourly_rate,
	skills, interests, COALESCE(is_verified, FALSE), COALESCE(rating, 0), COALESCE(reviews_count, 0),
	COALESCE(total_earned, 0), created_at, updated_at
`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.AvatarURL,
		&p.Bio,
		&p.Location,
		&p.Website,
		&p.PrimaryRole,
		&p.HourlyRate,
		&p.Skills,
		&p.Interests,
		&p.IsVerified,
		&p.Rating,
		&p.ReviewsCount,
		&p.TotalEarned,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get profile", err)
	}
	return p, nil
}

// Update 更新可编辑字段，返回更新后的资料
func (r *ProfileRepository) Update(ctx context.Context, id uuid.UUID, u model.ProfileUpdate) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `
		UPDATE profiles
		SET full_name = $2,
		    bio = $3,
		    location = $4,
		    website = $5,
		    primary_role = $6,
		    hourly_rate = $7,
		    skills = $8,
		    interests = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileColumns,
		id,
		u.FullName,
		u.Bio,
		u.Location,
		u.Website,
		u.PrimaryRole,
		u.HourlyRate,
		nullableSlice(u.Skills),
		nullableSlice(u.Interests),
	))
	if err != nil {
		return nil, mapError("update profile", err)
	}
	return p, nil
}

// Role 返回当前存储的 primary_role
func (r *ProfileRepository) Role(ctx context.Context, id uuid.UUID) (string, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT primary_role FROM profiles WHERE id = $1`, id).Scan(&role)
	if err != nil {
		return "", mapError("get profile role", err)
	}
	return role, nil
}

func (r *ProfileRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, mapError("profile exists", err)
	}
	return exists, nil
}
