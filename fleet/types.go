/*
Package fleet provides the core domain of the rider mileage tracker.

PURPOSE:
  Riders log odometer readings and per-shift equipment checks; administrators
  review, filter, aggregate and export them. This package holds the domain
  types, their validation, the join/filter pipeline and the aggregations.
  It knows nothing about HTTP, SQL or file formats.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: one identity space, tagged as rider or admin
  - RiderProfile: payload only riders carry (matricule)
  - Identifiers: type-safe ids for users, entries and sessions

TAGGED VARIANT:
  A rider and an admin share the users table but not their shape. Role is the
  tag; Rider is set if and only if Role == RoleRider. Validate() enforces it,
  so a loosely-typed "admin with a matricule" never reaches a store.

SEE ALSO:
  - entries.go: MileageEntry and EquipmentEntry
  - filter.go: Entity join & filter
  - aggregate.go: Summary statistics
  - store.go: Persistence interfaces
*/
package fleet

import (
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EntryID string
type SessionID string

// =============================================================================
// ROLE - The tag of the user variant
// =============================================================================

type Role string

const (
	RoleRider Role = "rider"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleRider || r == RoleAdmin
}

// =============================================================================
// USER
// =============================================================================

// User is a rider or an administrator.
type User struct {
	ID           UserID        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Role         Role          `json:"role"`
	Photo        string        `json:"photo,omitempty"`
	PasswordHash string        `json:"-"`
	Rider        *RiderProfile `json:"rider,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// RiderProfile is the payload specific to riders.
type RiderProfile struct {
	Matricule string `json:"matricule,omitempty"`
}

// NewRider builds a rider user.
func NewRider(id UserID, name, email, matricule string) User {
	return User{
		ID:    id,
		Name:  name,
		Email: NormalizeEmail(email),
		Role:  RoleRider,
		Rider: &RiderProfile{Matricule: strings.TrimSpace(matricule)},
	}
}

// NewAdmin builds an administrator user.
func NewAdmin(id UserID, name, email string) User {
	return User{
		ID:    id,
		Name:  name,
		Email: NormalizeEmail(email),
		Role:  RoleAdmin,
	}
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
func (u User) IsRider() bool { return u.Role == RoleRider }

// Matricule returns the rider's registration number, or "" for admins.
func (u User) Matricule() string {
	if u.Rider == nil {
		return ""
	}
	return u.Rider.Matricule
}

// Validate checks required fields and the variant invariant.
func (u User) Validate() error {
	if u.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if strings.TrimSpace(u.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if strings.TrimSpace(u.Email) == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	if !strings.Contains(u.Email, "@") {
		return &ValidationError{Field: "email", Message: "must be an email address"}
	}
	switch u.Role {
	case RoleRider:
		if u.Rider == nil {
			return &ValidationError{Field: "rider", Message: "rider profile is required for riders"}
		}
	case RoleAdmin:
		if u.Rider != nil {
			return &ValidationError{Field: "rider", Message: "admins carry no rider profile"}
		}
	default:
		return &ValidationError{Field: "role", Message: "must be rider or admin"}
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
