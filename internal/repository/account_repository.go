package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
)

const uniqueViolation = "23505"

const accountColumns = `id, username, email, password_hash, role, designation, created_at`

// AccountRepository provides database access for accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts the account, failing with ErrDuplicateEmail on a case-insensitive email clash.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	existing, err := r.FindAccountByEmail(ctx, account.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return appErrors.ErrDuplicateEmail
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Email = models.NormalizeEmail(account.Email)

	const query = `INSERT INTO accounts (id, username, email, password_hash, role, designation, created_at) VALUES (:id, :username, :email, :password_hash, :role, :designation, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return appErrors.ErrDuplicateEmail
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// FindAccountByEmail returns nil without error when nothing matches.
func (r *AccountRepository) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, models.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// FindAccountByID returns nil without error when nothing matches.
func (r *AccountRepository) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// UpdateAccountDesignation updates the designation and returns the account, or nil when it does not exist.
func (r *AccountRepository) UpdateAccountDesignation(ctx context.Context, id string, designation models.Designation) (*models.Account, error) {
	const query = `UPDATE accounts SET designation = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, designation)
	if err != nil {
		return nil, fmt.Errorf("update account designation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update account designation: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return r.FindAccountByID(ctx, id)
}
