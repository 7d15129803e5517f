package rbac

import (
	"errors"
	"strings"
)

type Role string
type Action string

const (
	RoleUser      Role = "user"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead        Action = "read"
	ActionReport      Action = "report"
	ActionComment     Action = "comment"
	ActionVote        Action = "vote"
	ActionTriage      Action = "triage"
	ActionManageUsers Action = "manage_users"
	ActionViewAudit   Action = "view_audit"
)

var (
	ErrUnknownRole  = errors.New("unknown role")
	ErrSelfDemotion = errors.New("admins cannot remove their own admin role")
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleVolunteer:
		return action == ActionRead || action == ActionReport || action == ActionComment || action == ActionVote || action == ActionTriage
	case RoleUser:
		return action == ActionRead || action == ActionReport || action == ActionComment || action == ActionVote
	default:
		return false
	}
}

func ParseRole(value string) (Role, error) {
	switch Role(strings.TrimSpace(value)) {
	case RoleUser, RoleVolunteer, RoleAdmin:
		return Role(strings.TrimSpace(value)), nil
	default:
		return "", ErrUnknownRole
	}
}

// Subject is the caller as seen by the policy.
type Subject struct {
	ID       string
	Role     Role
	Location string
}

// Scope restricts which complaints a subject may see.
type Scope struct {
	// Nothing is set for a volunteer without a location: they see no complaints.
	Nothing         bool
	OwnerID         string
	AddressContains string
}

func (s Scope) Allows(ownerID, address string) bool {
	if s.Nothing {
		return false
	}
	if s.OwnerID != "" && s.OwnerID != ownerID {
		return false
	}
	if s.AddressContains != "" && !strings.Contains(strings.ToLower(address), strings.ToLower(s.AddressContains)) {
		return false
	}
	return true
}

// ListingScope applies to the recent/all listings and search.
func ListingScope(sub Subject) Scope {
	switch sub.Role {
	case RoleAdmin, RoleUser:
		return Scope{}
	case RoleVolunteer:
		location := strings.TrimSpace(sub.Location)
		if location == "" {
			return Scope{Nothing: true}
		}
		return Scope{AddressContains: location}
	default:
		return Scope{Nothing: true}
	}
}

// ViewScope applies to fetching a single complaint by id. Plain users only
// see their own reports here.
func ViewScope(sub Subject) Scope {
	if sub.Role == RoleUser {
		return Scope{OwnerID: sub.ID}
	}
	return ListingScope(sub)
}

func CanTriage(role Role) bool {
	return Can(role, ActionTriage)
}

// CanEditComplaint holds for the owner only, whatever their role.
func CanEditComplaint(sub Subject, ownerID string) bool {
	return sub.ID != "" && sub.ID == ownerID
}

func CanDeleteComplaint(sub Subject, ownerID string) bool {
	return CanEditComplaint(sub, ownerID)
}

func CanDeleteComment(sub Subject, authorID string) bool {
	return sub.Role == RoleAdmin || (sub.ID != "" && sub.ID == authorID)
}

// ValidateRoleChange checks an admin's request to set targetID's role.
func ValidateRoleChange(sub Subject, targetID string, newRole Role) error {
	if sub.ID == targetID && sub.Role == RoleAdmin && newRole != RoleAdmin {
		return ErrSelfDemotion
	}
	return nil
}
