package models

import "time"

const (
	RoleStudent     = "student"
	RoleCompany     = "company"
	RoleInstitution = "institution"
	RoleAdmin       = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	AvatarURL    *string   `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DirectoryEntry is the display-ready shape user ids are resolved into when
// chat entities are denormalized. Avatar is empty when the user has none.
type DirectoryEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleCompany, RoleInstitution:
		return true
	default:
		return false
	}
}
