package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile 用户公开资料，id 与 users.id 相同
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name"`
	AvatarURL    *string   `json:"avatar_url"`
	Bio          *string   `json:"bio"`
	Location     *string   `json:"location"`
	Website      *string   `json:"website"`
	PrimaryRole  string    `json:"primary_role"`
	HourlyRate   *float64  `json:"hourly_rate"`
	Skills       []string  `json:"skills"`
	Interests    []string  `json:"interests"`
	IsVerified   bool      `json:"is_verified"`
	Rating       float64   `json:"rating"`
	ReviewsCount int       `json:"reviews_count"`
	TotalEarned  float64   `json:"total_earned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileUpdate carries the editable profile fields after normalisation.
type ProfileUpdate struct {
	FullName    *string
	Bio         *string
	Location    *string
	Website     *string
	PrimaryRole string
	HourlyRate  *float64
	Skills      []string
	Interests   []string
}

// UserSummary is the embedded author/creator/sender view of a profile.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Location  string    `json:"location,omitempty"`
	Rating    float64   `json:"rating"`
}

// Str returns the pointed-to string or "".
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
