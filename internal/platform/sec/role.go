// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted system access
	RoleAdmin UserRole = "admin"

	// Offers paid consultations and manages an astrologer profile
	RoleAstrologer UserRole = "astrologer"

	// Default role for consultation-booking members
	RoleClient UserRole = "client"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-30) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 30
	case RoleAstrologer:
		return 20
	case RoleClient:
		return 10
	default:
		return 0
	}
}

// IsValid reports whether the role is one of the known account roles.
func (r UserRole) IsValid() bool {
	return r == RoleAdmin || r == RoleAstrologer || r == RoleClient
}
