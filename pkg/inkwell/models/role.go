package models

// RoleID is the ordinal of a user's role. The ordinals are stable and match
// the seeded rows in the roles table.
type RoleID uint

const (
	RoleUser       RoleID = 1
	RoleModerator  RoleID = 2
	RoleAdmin      RoleID = 3
	RoleSuperAdmin RoleID = 4
)

// IsPrivileged reports whether the role may bypass post ownership checks.
func (r RoleID) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Valid reports whether r is one of the known roles.
func (r RoleID) Valid() bool {
	return r >= RoleUser && r <= RoleSuperAdmin
}

// Role is a named role row
type Role struct {
	ID   RoleID `gorm:"primarykey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// DefaultRoles returns the roles every installation starts with
func DefaultRoles() []Role {
	return []Role{
		{ID: RoleUser, Name: "User"},
		{ID: RoleModerator, Name: "Moderator"},
		{ID: RoleAdmin, Name: "Admin"},
		{ID: RoleSuperAdmin, Name: "SuperAdmin"},
	}
}
