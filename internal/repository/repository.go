// Package repository declares the storage interfaces the services depend on.
// Implementations live in sub-packages (repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/notes-app/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// AccountRepository persists accounts keyed by email.
//
// Create must let the store enforce email uniqueness: when a row with the
// same email already exists it returns an error matching apperror.ErrConflict.
// Lookups that find nothing return an error matching apperror.ErrNotFound.
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

// NoteRepository stores notes. Every method is scoped by the owner's id;
// a note owned by someone else behaves exactly like a missing one.
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	GetByID(ctx context.Context, userID, id string) (*model.Note, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Note, error)
	Update(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, userID, id string) error
}
