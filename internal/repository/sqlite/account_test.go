package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/model"
)

// createTestAccount creates an account and fails the test if it errors.
func createTestAccount(t *testing.T, a *AccountDB, email string, method model.AuthMethod) *model.Account {
	t.Helper()
	account := &model.Account{
		Email:      email,
		Name:       "Test User",
		AuthMethod: method,
	}
	if err := a.Create(context.Background(), account); err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestAccountCreate(t *testing.T) {
	a := newTestDB(t).Accounts()

	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	account := &model.Account{
		Email:       "ann@x.com",
		Name:        "Ann",
		DateOfBirth: &dob,
		AuthMethod:  model.AuthMethodEmail,
	}

	if err := a.Create(context.Background(), account); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if account.ID == "" {
		t.Error("Create() did not set account.ID")
	}
	if account.CreatedAt.IsZero() {
		t.Error("Create() did not set account.CreatedAt")
	}
}

func TestAccountCreate_DuplicateEmailIsConflict(t *testing.T) {
	a := newTestDB(t).Accounts()
	createTestAccount(t, a, "dup@x.com", model.AuthMethodEmail)

	// Same email, other method: the UNIQUE index must still reject it.
	err := a.Create(context.Background(), &model.Account{
		Email:      "dup@x.com",
		Name:       "Other",
		AuthMethod: model.AuthMethodGoogle,
	})
	if err == nil {
		t.Fatal("Create() should have returned an error for a duplicate email")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

func TestAccountCreate_ConcurrentInsertsLeaveOneAccount(t *testing.T) {
	a := newTestDB(t).Accounts()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.Create(context.Background(), &model.Account{
				Email:      "race@x.com",
				Name:       "Racer",
				AuthMethod: model.AuthMethodGoogle,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperror.ErrConflict):
				conflicts++
			default:
				t.Errorf("Create() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Errorf("successful creates = %d, want 1", ok)
	}
	if conflicts != attempts-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestAccountGetByEmail(t *testing.T) {
	a := newTestDB(t).Accounts()
	created := createTestAccount(t, a, "bob@x.com", model.AuthMethodGoogle)

	found, err := a.GetByEmail(context.Background(), "bob@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.AuthMethod != model.AuthMethodGoogle {
		t.Errorf("AuthMethod = %q, want %q", found.AuthMethod, model.AuthMethodGoogle)
	}
	if found.DateOfBirth != nil {
		t.Errorf("DateOfBirth = %v, want nil for a Google account", found.DateOfBirth)
	}
}

func TestAccountGetByEmail_DateOfBirthRoundTrip(t *testing.T) {
	a := newTestDB(t).Accounts()

	dob := time.Date(1985, 7, 14, 0, 0, 0, 0, time.UTC)
	if err := a.Create(context.Background(), &model.Account{
		Email: "dob@x.com", Name: "Dee", DateOfBirth: &dob, AuthMethod: model.AuthMethodEmail,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := a.GetByEmail(context.Background(), "dob@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.DateOfBirth == nil || !found.DateOfBirth.Equal(dob) {
		t.Errorf("DateOfBirth = %v, want %v", found.DateOfBirth, dob)
	}
}

func TestAccountGetByEmail_NotFound(t *testing.T) {
	a := newTestDB(t).Accounts()

	_, err := a.GetByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestAccountGetByID(t *testing.T) {
	a := newTestDB(t).Accounts()
	created := createTestAccount(t, a, "id@x.com", model.AuthMethodEmail)

	found, err := a.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Email != "id@x.com" {
		t.Errorf("Email = %q, want %q", found.Email, "id@x.com")
	}
}

func TestAccountGetByID_NotFound(t *testing.T) {
	a := newTestDB(t).Accounts()

	_, err := a.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}
