package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/model"
	"github.com/sakif/notes-app/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *NoteDB stops implementing repository.NoteRepository, the build fails
// here instead of at the call site in server.go.
var _ repository.NoteRepository = (*NoteDB)(nil)

// NoteDB is the notes table view of a DB. Get one with DB.Notes().
type NoteDB struct {
	conn *sql.DB
}

// Notes returns the note repository backed by this database.
func (db *DB) Notes() *NoteDB {
	return &NoteDB{conn: db.conn}
}

// Create inserts a new note. ID and timestamps are generated here and written
// back into the caller's struct (pointer argument).
//
// ID GENERATION WITH xid:
// 20 chars, URL-safe, sortable by creation time. Example: "cv37rs3pp9olc6atsptg".
func (db *NoteDB) Create(ctx context.Context, note *model.Note) error {
	note.ID = xid.New().String()

	now := time.Now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}

	return nil
}

// GetByID retrieves a single note owned by userID.
//
// The user_id condition is part of the WHERE clause, not a check afterwards:
// a note that exists but belongs to someone else yields sql.ErrNoRows, and
// the caller sees the same NotFound as for an unknown id.
func (db *NoteDB) GetByID(ctx context.Context, userID, id string) (*model.Note, error) {
	var note model.Note

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM notes
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Content,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlite: getting note %s: %w", id, err)
	}

	return &note, nil
}

// ListByUser returns the notes of one user, most recently updated first.
func (db *NoteDB) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Note, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM notes
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes: %w", err)
	}
	// CRITICAL: rows holds a pooled connection until closed.
	defer rows.Close()

	notes := make([]model.Note, 0, limit)
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Content,
			&n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notes: %w", err)
	}

	return notes, nil
}

// Update overwrites title and content of a note owned by note.UserID.
// Zero rows affected means the note is missing or not owned → NotFound.
func (db *NoteDB) Update(ctx context.Context, note *model.Note) error {
	note.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE notes
		 SET title = ?, content = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		note.Title,
		note.Content,
		note.UpdatedAt,
		note.ID,
		note.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating note %s: %w", note.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", note.ID)
	}

	return nil
}

// Delete removes a note owned by userID.
func (db *NoteDB) Delete(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", id)
	}

	return nil
}
