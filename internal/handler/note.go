package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/auth"
	"github.com/sakif/notes-app/internal/model"
)

// NoteService is the part of *service.NoteService the HTTP layer uses.
type NoteService interface {
	Create(ctx context.Context, userID, title, content string) (*model.Note, error)
	Get(ctx context.Context, userID, id string) (*model.Note, error)
	List(ctx context.Context, userID string, limit, offset int) ([]model.Note, error)
	Update(ctx context.Context, userID, id, title, content string) (*model.Note, error)
	Delete(ctx context.Context, userID, id string) error
}

// NoteHandler serves /api/notes. Every route sits behind RequireAuth; the
// owner is always the session holder, never a request field.
type NoteHandler struct {
	svc    NoteService
	logger *slog.Logger
}

func NewNoteHandler(svc NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{svc: svc, logger: logger}
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// HandleCreate saves a new note.
//
// HTTP: POST /api/notes
// REQUEST BODY: {"title": "Groceries", "content": "milk, eggs"}
// RESPONSE: 201 with the stored note
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.svc.Create(r.Context(), owner, req.Title, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note) // 201 Created
}

// HandleList returns the caller's notes, most recently updated first.
//
// HTTP: GET /api/notes?limit=20&offset=0
//
// Unparseable paging values fall back to the defaults.
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	notes, err := h.svc.List(r.Context(), owner, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleGet returns one note.
//
// HTTP: GET /api/notes/{id}
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	note, err := h.svc.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleUpdate replaces a note's title and content.
//
// HTTP: PUT /api/notes/{id}
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.svc.Update(r.Context(), owner, chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleDelete removes a note.
//
// HTTP: DELETE /api/notes/{id}
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Note deleted successfully"})
}

// requireOwner reads the session holder's id. On a route mounted without
// RequireAuth it answers 401 itself and returns false.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthorized("No token provided"))
		return "", false
	}
	return id.ID, true
}
