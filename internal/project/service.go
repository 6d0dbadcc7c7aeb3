package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/state"
	"github.com/reforesta/planner/backend-go/internal/store"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

var (
	ErrNotFound          = errors.New("project not found")
	ErrForbidden         = errors.New("forbidden")
	ErrNotMember         = errors.New("not a project member")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyMember     = errors.New("user is already a member")
	ErrCannotRemoveOwner = errors.New("cannot remove project owner")
	ErrInvalidDocument   = errors.New("invalid project document")
)

type Service struct {
	store store.Store
	log   *slog.Logger
}

func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log}
}

// Create makes a project owned by ownerID and seeds its first snapshot,
// empty or from a named template. An empty name takes the template's.
func (s *Service) Create(ctx context.Context, name, ownerID, template string) (*store.Project, error) {
	doc, err := document.NewFromTemplate(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if name = strings.TrimSpace(name); name != "" {
		doc.Name = name
	}

	p, err := s.store.CreateProject(ctx, store.Project{
		ID:      typeid.NewProjectID(),
		Name:    doc.Name,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	raw, err := document.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.store.SaveSnapshot(ctx, typeid.NewSnapshotID(), p.ID, raw); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	s.log.Info("project created", "project", p.ID, "owner", ownerID, "template", template)
	return &p, nil
}

func (s *Service) Get(ctx context.Context, projectID, userID string) (*store.Project, error) {
	if err := s.checkMembership(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.project(ctx, projectID)
}

func (s *Service) List(ctx context.Context, userID string) ([]store.Project, error) {
	projects, err := s.store.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *Service) Delete(ctx context.Context, projectID, userID string) error {
	if _, err := s.ownedProject(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *Service) InviteByEmail(ctx context.Context, projectID, ownerID, inviteeEmail string) error {
	if _, err := s.ownedProject(ctx, projectID, ownerID); err != nil {
		return err
	}

	invitee, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(inviteeEmail)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	err = s.store.AddMember(ctx, projectID, invitee.ID, store.RoleEditor)
	if errors.Is(err, store.ErrConflict) {
		return ErrAlreadyMember
	}
	return err
}

func (s *Service) ListMembers(ctx context.Context, projectID, userID string) ([]store.Member, error) {
	if err := s.checkMembership(ctx, projectID, userID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *Service) RemoveMember(ctx context.Context, projectID, ownerID, targetUserID string) error {
	if _, err := s.ownedProject(ctx, projectID, ownerID); err != nil {
		return err
	}
	if targetUserID == ownerID {
		return ErrCannotRemoveOwner
	}

	err := s.store.RemoveMember(ctx, projectID, targetUserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// SaveSnapshot validates raw as a project file and stores its normalized
// form as the next version. Decoder warnings are returned alongside.
func (s *Service) SaveSnapshot(ctx context.Context, projectID, userID string, raw []byte) (*store.Snapshot, []string, error) {
	if err := s.checkMembership(ctx, projectID, userID); err != nil {
		return nil, nil, err
	}

	doc, warnings, err := document.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	snap, err := s.SaveDocument(ctx, projectID, doc)
	if err != nil {
		return nil, nil, err
	}
	return snap, warnings, nil
}

// SaveDocument stores doc as the next snapshot without a membership check
// and keeps the project name in step with the document's.
func (s *Service) SaveDocument(ctx context.Context, projectID string, doc *document.ProjectData) (*store.Snapshot, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	raw, err := document.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	snap, err := s.store.SaveSnapshot(ctx, typeid.NewSnapshotID(), projectID, raw)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	if doc.Name != "" && doc.Name != p.Name {
		if err := s.store.RenameProject(ctx, projectID, doc.Name); err != nil {
			return nil, fmt.Errorf("rename project: %w", err)
		}
	}
	s.log.Debug("snapshot saved", "project", projectID, "version", snap.Version)
	return &snap, nil
}

func (s *Service) GetLatestSnapshot(ctx context.Context, projectID, userID string) (json.RawMessage, error) {
	if err := s.checkMembership(ctx, projectID, userID); err != nil {
		return nil, err
	}
	snap, err := s.latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return snap.Document, nil
}

// LoadDocument decodes the latest snapshot without a membership check.
func (s *Service) LoadDocument(ctx context.Context, projectID string) (*document.ProjectData, error) {
	snap, err := s.latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	doc, _, err := document.Decode(snap.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", ErrInvalidDocument, snap.ID, err)
	}
	return doc, nil
}

// Summary computes the project statistics from its latest snapshot.
func (s *Service) Summary(ctx context.Context, projectID, userID string) (*state.Statistics, error) {
	if err := s.checkMembership(ctx, projectID, userID); err != nil {
		return nil, err
	}
	doc, err := s.LoadDocument(ctx, projectID)
	if err != nil {
		return nil, err
	}

	st := state.New(state.Config{Logger: s.log})
	st.LoadProjectData(doc, nil)
	stats := st.Statistics()
	return &stats, nil
}

// IsMember reports whether userID may open the project.
func (s *Service) IsMember(ctx context.Context, projectID, userID string) error {
	return s.checkMembership(ctx, projectID, userID)
}

func (s *Service) latest(ctx context.Context, projectID string) (*store.Snapshot, error) {
	snap, err := s.store.LatestSnapshot(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Service) project(ctx context.Context, projectID string) (*store.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *Service) ownedProject(ctx context.Context, projectID, userID string) (*store.Project, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) checkMembership(ctx context.Context, projectID, userID string) error {
	_, err := s.store.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("check membership: %w", err)
	}
	return nil
}
