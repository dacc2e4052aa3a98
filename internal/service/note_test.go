package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/model"
	"github.com/sakif/notes-app/internal/repository"
)

// fakeNoteRepo is an in-memory repository.NoteRepository. Lookups are
// scoped by owner exactly like the SQL implementation.
type fakeNoteRepo struct {
	notes  map[string]*model.Note
	nextID int
	tick   time.Time

	createErr error
	lastOpts  repository.ListOptions
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{
		notes: make(map[string]*model.Note),
		tick:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now advances a fake clock so every write gets a distinct timestamp.
func (f *fakeNoteRepo) now() time.Time {
	f.tick = f.tick.Add(time.Second)
	return f.tick
}

func (f *fakeNoteRepo) Create(_ context.Context, n *model.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	n.ID = fmt.Sprintf("note-%d", f.nextID)
	n.CreatedAt = f.now()
	n.UpdatedAt = n.CreatedAt
	copied := *n
	f.notes[n.ID] = &copied
	return nil
}

func (f *fakeNoteRepo) GetByID(_ context.Context, userID, id string) (*model.Note, error) {
	n, ok := f.notes[id]
	if !ok || n.UserID != userID {
		return nil, apperror.NotFound("note", id)
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNoteRepo) ListByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Note, error) {
	f.lastOpts = opts

	var out []model.Note
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	if opts.Offset >= len(out) {
		return []model.Note{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeNoteRepo) Update(_ context.Context, n *model.Note) error {
	stored, ok := f.notes[n.ID]
	if !ok || stored.UserID != n.UserID {
		return apperror.NotFound("note", n.ID)
	}
	n.UpdatedAt = f.now()
	stored.Title, stored.Content, stored.UpdatedAt = n.Title, n.Content, n.UpdatedAt
	return nil
}

func (f *fakeNoteRepo) Delete(_ context.Context, userID, id string) error {
	n, ok := f.notes[id]
	if !ok || n.UserID != userID {
		return apperror.NotFound("note", id)
	}
	delete(f.notes, id)
	return nil
}

func newTestNoteService() (*NoteService, *fakeNoteRepo) {
	repo := newFakeNoteRepo()
	return NewNoteService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

// =========================================================================
// Create
// =========================================================================

func TestNoteCreate(t *testing.T) {
	svc, _ := newTestNoteService()

	note, err := svc.Create(context.Background(), "acc-ann", "  Groceries ", " milk, eggs ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if note.ID == "" {
		t.Error("ID should be set")
	}
	if note.UserID != "acc-ann" {
		t.Errorf("UserID = %q, want acc-ann", note.UserID)
	}
	if note.Title != "Groceries" || note.Content != "milk, eggs" {
		t.Errorf("note = %q / %q, want trimmed fields", note.Title, note.Content)
	}
}

func TestNoteCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		field   string
	}{
		{name: "empty title", title: "", content: "body", field: "title"},
		{name: "whitespace title", title: "   ", content: "body", field: "title"},
		{name: "title too long", title: strings.Repeat("t", MaxNoteTitleLength+1), content: "body", field: "title"},
		{name: "empty content", title: "Title", content: "", field: "content"},
		{name: "content too long", title: "Title", content: strings.Repeat("c", MaxNoteContentLength+1), field: "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestNoteService()

			_, err := svc.Create(context.Background(), "acc-ann", tt.title, tt.content)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want Validation", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
			if len(repo.notes) != 0 {
				t.Error("an invalid note must not be stored")
			}
		})
	}
}

func TestNoteCreate_LimitsCountRunes(t *testing.T) {
	svc, _ := newTestNoteService()

	title := strings.Repeat("ü", MaxNoteTitleLength)
	if _, err := svc.Create(context.Background(), "acc-ann", title, "body"); err != nil {
		t.Fatalf("Create() with %d multi-byte runes error = %v", MaxNoteTitleLength, err)
	}
}

func TestNoteCreate_RepositoryError(t *testing.T) {
	svc, repo := newTestNoteService()
	repo.createErr = errors.New("disk full")

	_, err := svc.Create(context.Background(), "acc-ann", "Title", "body")
	if err == nil {
		t.Fatal("Create() should propagate repository errors")
	}
}

// =========================================================================
// Ownership
// =========================================================================

func TestNote_ForeignNotesAreNotFound(t *testing.T) {
	svc, _ := newTestNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "acc-ann", "Ann's", "private")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx, "acc-bob", note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() by another account error = %v, want NotFound", err)
	}
	if _, err := svc.Update(ctx, "acc-bob", note.ID, "mine", "now"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() by another account error = %v, want NotFound", err)
	}
	if err := svc.Delete(ctx, "acc-bob", note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() by another account error = %v, want NotFound", err)
	}

	got, err := svc.Get(ctx, "acc-ann", note.ID)
	if err != nil {
		t.Fatalf("owner Get() error = %v", err)
	}
	if got.Title != "Ann's" {
		t.Errorf("Title = %q, the note must be untouched", got.Title)
	}
}

func TestNote_EmptyID(t *testing.T) {
	svc, _ := newTestNoteService()
	ctx := context.Background()

	if _, err := svc.Get(ctx, "acc-ann", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get() error = %v, want Validation", err)
	}
	if _, err := svc.Update(ctx, "acc-ann", " ", "t", "c"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want Validation", err)
	}
	if err := svc.Delete(ctx, "acc-ann", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Delete() error = %v, want Validation", err)
	}
}

// =========================================================================
// Update / Delete / List
// =========================================================================

func TestNoteUpdate(t *testing.T) {
	svc, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "acc-ann", "Draft", "v1")

	updated, err := svc.Update(ctx, "acc-ann", note.ID, "Final", "v2")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Final" || updated.Content != "v2" {
		t.Errorf("updated = %q / %q", updated.Title, updated.Content)
	}
	if !updated.CreatedAt.Equal(note.CreatedAt) {
		t.Error("CreatedAt must survive an update")
	}
	if !updated.UpdatedAt.After(note.UpdatedAt) {
		t.Error("UpdatedAt should advance")
	}
}

func TestNoteUpdate_ValidatesBeforeLookup(t *testing.T) {
	svc, _ := newTestNoteService()

	_, err := svc.Update(context.Background(), "acc-ann", "note-missing", "", "c")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want Validation", err)
	}
}

func TestNoteDelete(t *testing.T) {
	svc, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "acc-ann", "Temp", "gone soon")

	if err := svc.Delete(ctx, "acc-ann", note.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, "acc-ann", note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want NotFound", err)
	}
}

func TestNoteList(t *testing.T) {
	svc, _ := newTestNoteService()
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if _, err := svc.Create(ctx, "acc-ann", title, "body"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Create(ctx, "acc-bob", "bob's", "body"); err != nil {
		t.Fatal(err)
	}

	notes, err := svc.List(ctx, "acc-ann", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("len = %d, want 3", len(notes))
	}
	if notes[0].Title != "three" {
		t.Errorf("first = %q, want most recently updated", notes[0].Title)
	}

	empty, err := svc.List(ctx, "acc-nobody", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() for an account with no notes = %#v, want empty slice", empty)
	}
}

func TestNoteList_ClampsPaging(t *testing.T) {
	tests := []struct {
		limit, offset       int
		wantLimit, wantOffs int
	}{
		{limit: 0, offset: 0, wantLimit: DefaultListLimit, wantOffs: 0},
		{limit: -5, offset: -1, wantLimit: DefaultListLimit, wantOffs: 0},
		{limit: 500, offset: 10, wantLimit: MaxListLimit, wantOffs: 10},
		{limit: 7, offset: 3, wantLimit: 7, wantOffs: 3},
	}

	for _, tt := range tests {
		svc, repo := newTestNoteService()
		if _, err := svc.List(context.Background(), "acc-ann", tt.limit, tt.offset); err != nil {
			t.Fatal(err)
		}
		if repo.lastOpts.Limit != tt.wantLimit || repo.lastOpts.Offset != tt.wantOffs {
			t.Errorf("List(%d, %d) passed %+v, want limit=%d offset=%d",
				tt.limit, tt.offset, repo.lastOpts, tt.wantLimit, tt.wantOffs)
		}
	}
}
