package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a marketplace role.
type Role string

const (
	RoleSponsor    Role = "sponsor"
	RoleInfluencer Role = "influencer"
	RoleAdmin      Role = "admin"
)

// User is the read-only view of a marketplace account. Registration and
// approval are owned by the identity service.
type User struct {
	ID              int64     `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	Username        string    `json:"username"`
	Role            Role      `json:"role"`
	Active          bool      `json:"isActive"`
	SponsorApproved *bool     `json:"sponsorApproved,omitempty"`
	Flagged         bool      `json:"isFlagged"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Active
}

// CanSponsor reports whether the account may open or fund deals as a sponsor.
func (u *User) CanSponsor() bool {
	if !u.IsActive() || u.Role != RoleSponsor {
		return false
	}
	return u.SponsorApproved != nil && *u.SponsorApproved
}

// CanInfluence reports whether the account may negotiate as an influencer.
func (u *User) CanInfluence() bool {
	return u.IsActive() && u.Role == RoleInfluencer
}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if err := ValidateRole(role); err != nil {
		return "", err
	}
	return role, nil
}

func ValidateRole(role Role) error {
	switch role {
	case RoleSponsor, RoleInfluencer, RoleAdmin:
		return nil
	default:
		return errors.New("invalid role")
	}
}
