// Package store persists users, projects, memberships and project
// snapshots. Postgres backs shared deployments, SQLite local ones and
// tests; a Redis cache can sit in front of either.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Member struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Snapshot is one saved version of a project document. Versions start at
// 1 and grow by one per save.
type Snapshot struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	Version   int             `json:"version"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)

	// CreateProject inserts the project and makes its owner a member.
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]Project, error)
	RenameProject(ctx context.Context, id, name string) error
	// DeleteProject removes the project with its members and snapshots.
	DeleteProject(ctx context.Context, id string) error

	AddMember(ctx context.Context, projectID, userID string, role Role) error
	GetMember(ctx context.Context, projectID, userID string) (Member, error)
	ListMembers(ctx context.Context, projectID string) ([]Member, error)
	RemoveMember(ctx context.Context, projectID, userID string) error

	// SaveSnapshot stores doc as the next version of the project.
	SaveSnapshot(ctx context.Context, id, projectID string, doc []byte) (Snapshot, error)
	LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error)

	Close() error
}
