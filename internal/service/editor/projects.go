package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aliskhannn/nano-editor/internal/editor"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// SaveProject stores the displayed image and adjustments of a session as a new project.
func (s *Service) SaveProject(ctx context.Context, sessionID uuid.UUID, name string) (model.Project, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return model.Project{}, err
	}

	img, err := sess.Current()
	if err != nil {
		return model.Project{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = img.Name
	}

	return s.projects.Save(ctx, model.Project{
		Name:        name,
		Owner:       sess.Owner(),
		Image:       img,
		Adjustments: sess.Adjustments(),
	})
}

// UpdateProject records the current state of a session as a new revision of a project.
func (s *Service) UpdateProject(ctx context.Context, projectID, sessionID uuid.UUID, note string) (model.Project, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return model.Project{}, err
	}

	img, err := sess.Current()
	if err != nil {
		return model.Project{}, err
	}
	if note == "" {
		note = "updated"
	}

	return s.projects.Update(ctx, model.Project{
		ID:          projectID,
		Image:       img,
		Adjustments: sess.Adjustments(),
	}, note)
}

// RenameProject changes the name of a project without touching its image.
func (s *Service) RenameProject(ctx context.Context, projectID uuid.UUID, name string) (model.Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return model.Project{}, err
	}

	p.Name = strings.TrimSpace(name)
	return s.projects.Update(ctx, p, "renamed")
}

// OpenProject starts a new session from a project's image and adjustments.
func (s *Service) OpenProject(ctx context.Context, projectID uuid.UUID, owner string) (editor.State, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return editor.State{}, err
	}
	if owner == "" {
		owner = p.Owner
	}

	sess := s.sessions.Create(owner)
	if _, err := sess.SetImage(p.Image); err != nil {
		_ = s.sessions.Delete(sess.ID())
		return editor.State{}, fmt.Errorf("open project: %w", err)
	}

	if _, err := sess.SetAdjustments(p.Adjustments); err != nil {
		_ = s.sessions.Delete(sess.ID())
		return editor.State{}, fmt.Errorf("open project: %w", err)
	}

	// Opening is not an edit the user can undo.
	return sess.ClearHistory(), nil
}

// Projects lists the projects of owner.
func (s *Service) Projects(ctx context.Context, owner string) ([]model.Project, error) {
	return s.projects.List(ctx, owner)
}

// Project returns one project.
func (s *Service) Project(ctx context.Context, id uuid.UUID) (model.Project, error) {
	return s.projects.Get(ctx, id)
}

// RestoreRevision makes a past revision the current state of a project.
func (s *Service) RestoreRevision(ctx context.Context, projectID, revisionID uuid.UUID) (model.Project, error) {
	return s.projects.Restore(ctx, projectID, revisionID)
}

// DeleteProject removes a project.
func (s *Service) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return s.projects.Remove(ctx, id)
}
