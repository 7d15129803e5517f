package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Location     string
	Phone        string
	Bio          string
	ProfilePhoto string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries the self-service profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	Location     *string
	Phone        *string
	Bio          *string
	ProfilePhoto *string
}

type Complaint struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Photos         []string
	LocationCoords string
	Address        string
	AssignedTo     string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ComplaintPatch replaces only the non-nil fields of a complaint.
type ComplaintPatch struct {
	Title          *string
	Description    *string
	Photos         *[]string
	LocationCoords *string
	Address        *string
	Status         *string
	AssignedTo     *string
}

// ComplaintFilter narrows complaint listings. Zero value lists everything.
type ComplaintFilter struct {
	OwnerID         string
	AddressContains string
	Limit           int
}

type Comment struct {
	ID          string
	UserID      string
	ComplaintID string
	ParentID    string
	Content     string
	PhotoURL    string
	Likes       []string
	Dislikes    []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Vote struct {
	ID          string
	UserID      string
	ComplaintID string
	VoteType    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type VoteCounts struct {
	Up   int
	Down int
}

type AuditLog struct {
	ID        int64
	UserID    string
	Action    string
	Timestamp time.Time
}
