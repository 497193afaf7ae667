package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles. Capability checks are exposed as
// methods so call sites never compare raw strings.
type Role string

const (
	RoleUser         Role = "user"
	RoleShelterOwner Role = "shelter_owner"
	RoleModerator    Role = "moderator"
	RoleAdmin        Role = "admin"
)

// ParseRole converts a stored or user-provided value to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleShelterOwner, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (r Role) IsModerator() bool { return r == RoleModerator }

func (r Role) IsShelterOwner() bool { return r == RoleShelterOwner }

// IsOrdinary reports whether r is a plain user without extra capabilities.
func (r Role) IsOrdinary() bool { return r == RoleUser }

// IsStaff reports whether r may moderate platform content.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleModerator:
		return true
	default:
		return false
	}
}

// Bucket is a shelter's urgency classification.
type Bucket string

const (
	BucketRed    Bucket = "red"
	BucketYellow Bucket = "yellow"
	BucketGreen  Bucket = "green"
)

// ParseBucket accepts red, yellow or green (case-insensitive).
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case BucketRed, BucketYellow, BucketGreen:
		return b, nil
	default:
		return "", fmt.Errorf("unknown warnings value %q", s)
	}
}
