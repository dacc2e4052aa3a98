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

// compile-time check that *AccountDB implements repository.AccountRepository
var _ repository.AccountRepository = (*AccountDB)(nil)

// AccountDB is the accounts table view of a DB. Get one with DB.Accounts().
type AccountDB struct {
	conn *sql.DB
}

// Accounts returns the account repository backed by this database.
func (db *DB) Accounts() *AccountDB {
	return &AccountDB{conn: db.conn}
}

// dobLayout is how date-of-birth is stored: a plain calendar date, no zone.
const dobLayout = "2006-01-02"

// Create inserts a new account. It fills in ID and timestamps.
//
// WHY INSERT AND NOT UPSERT?
// An account's auth method is immutable, so there is nothing to update on a
// repeated sign-in. More importantly, a plain INSERT lets the UNIQUE index on
// email decide races: the losing INSERT fails and we report it as a conflict
// instead of silently overwriting the winner.
func (db *AccountDB) Create(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	var dob sql.NullString
	if account.DateOfBirth != nil {
		dob = sql.NullString{String: account.DateOfBirth.Format(dobLayout), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, dob, auth_method, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.Name,
		dob,
		string(account.AuthMethod),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("sqlite: inserting account (%s): %w", account.Email, err)
	}

	return nil
}

// GetByEmail retrieves an account by its (already normalised) email.
// Returns apperror.ErrNotFound if no account exists for that address.
func (db *AccountDB) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, dob, auth_method, created_at, updated_at
		 FROM accounts WHERE email = ?`,
		email,
	)
	a, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}
	return a, nil
}

// GetByID retrieves an account by its internal ID.
func (db *AccountDB) GetByID(ctx context.Context, id string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, dob, auth_method, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return a, nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		a      model.Account
		dob    sql.NullString
		method string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &dob, &method, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.AuthMethod = model.AuthMethod(method)
	if dob.Valid {
		t, err := time.Parse(dobLayout, dob.String)
		if err != nil {
			return nil, fmt.Errorf("parsing dob %q: %w", dob.String, err)
		}
		a.DateOfBirth = &t
	}
	return &a, nil
}
