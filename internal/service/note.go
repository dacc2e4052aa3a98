// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives and return domain errors (apperror). They know
// nothing about HTTP, so the same rules apply to any caller.
//
// DEPENDENCY INJECTION:
// NoteService takes a repository.NoteRepository (interface), NOT a
// *sqlite.NoteDB. Tests pass a hand-written in-memory fake instead.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/model"
	"github.com/sakif/notes-app/internal/repository"
)

// NoteService handles business logic for notes.
//
// Every method takes the caller's account id. Ownership is part of every
// lookup, so a note owned by someone else is indistinguishable from a
// missing one (NotFound, never Forbidden).
type NoteService struct {
	repo   repository.NoteRepository
	logger *slog.Logger
}

func NewNoteService(repo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new note for userID.
func (s *NoteService) Create(ctx context.Context, userID, title, content string) (*model.Note, error) {
	in, err := validateNote(title, content)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		UserID:  userID,
		Title:   in.Title,
		Content: in.Content,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		s.logger.ErrorContext(ctx, "failed to create note",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.InfoContext(ctx, "note created",
		slog.String("id", note.ID),
		slog.String("user_id", userID),
	)

	return note, nil
}

// Get retrieves one of userID's notes.
func (s *NoteService) Get(ctx context.Context, userID, id string) (*model.Note, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	return s.repo.GetByID(ctx, userID, id)
}

// List returns userID's notes, most recently updated first.
func (s *NoteService) List(ctx context.Context, userID string, limit, offset int) ([]model.Note, error) {
	limit, offset = clampPage(limit, offset)

	notes, err := s.repo.ListByUser(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list notes", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	return notes, nil
}

// Update replaces title and content of one of userID's notes.
//
// STRATEGY: "Fetch then update"
// The fetch yields NotFound for foreign or missing notes and gives us the
// full record to return, with CreatedAt intact.
func (s *NoteService) Update(ctx context.Context, userID, id, title, content string) (*model.Note, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	in, err := validateNote(title, content)
	if err != nil {
		return nil, err
	}

	note, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	note.Title = in.Title
	note.Content = in.Content

	if err := s.repo.Update(ctx, note); err != nil {
		s.logger.ErrorContext(ctx, "failed to update note",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating note: %w", err)
	}

	s.logger.InfoContext(ctx, "note updated", slog.String("id", note.ID))

	return note, nil
}

// Delete removes one of userID's notes.
func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "note ID is required")
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "note deleted", slog.String("id", id))
	return nil
}
