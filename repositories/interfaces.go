package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/upb/tracking-bridge/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn within a transaction carried on its context.
	// Commits if fn succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// UserRepository handles local user data operations
type UserRepository interface {
	// GetByUsername looks a user up by exact username
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Upsert inserts the user or updates the row with the same username.
	// The stored id and creation time are written back into user.
	Upsert(ctx context.Context, user *models.User) error

	// List returns users ordered by username
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// SetAdmin updates the admin flag
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) (*models.User, error)
}

// LoginAuditRepository handles login audit rows
type LoginAuditRepository interface {
	// Insert appends a row
	Insert(ctx context.Context, audit *models.LoginAudit) error

	// ListByUser returns a user's most recent attempts first
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LoginAudit, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Users       UserRepository
	LoginAudits LoginAuditRepository
}
