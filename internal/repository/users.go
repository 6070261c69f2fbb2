package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
)

// userSelectList is the column list for SELECT on users.
const userSelectList = `id, email, platform_fee_percent, connected_account_ref,
		verification_session_ref, identity_verified, frozen,
		legal_name, date_of_birth, phone, address_line, city, postal_code, state,
		created_at, updated_at`

// UserRepository manages seller records.
type UserRepository struct {
	db  *sql.DB
	log logger.Logger
}

// NewUserRepository creates a new repository.
func NewUserRepository(db *sql.DB, log logger.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// Create inserts a new seller.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, platform_fee_percent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.PlatformFeePercent, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ValidationError{Field: "email", Message: "is already registered"}
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a seller by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userSelectList+` FROM users WHERE id = $1`, id,
	).Scan(
		&u.ID, &u.Email, &u.PlatformFeePercent, &u.ConnectedAccountRef,
		&u.VerificationSessionRef, &u.IdentityVerified, &u.Frozen,
		&u.LegalName, &u.DateOfBirth, &u.Phone, &u.AddressLine,
		&u.City, &u.PostalCode, &u.State,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// UpdateOnboarding stores the identity fields required before a connected
// account can be created.
func (r *UserRepository) UpdateOnboarding(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET legal_name = $2, date_of_birth = $3, phone = $4,
		    address_line = $5, city = $6, postal_code = $7, state = $8,
		    updated_at = NOW()
		WHERE id = $1`

	err := execExpectOneRow(ctx, r.db, query,
		user.ID, user.LegalName, user.DateOfBirth, user.Phone,
		user.AddressLine, user.City, user.PostalCode, user.State,
	)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update onboarding: %w", err)
	}
	return nil
}

// SetConnectedAccount stores the seller's payout-rail account reference.
func (r *UserRepository) SetConnectedAccount(ctx context.Context, userID, accountRef string) error {
	err := execExpectOneRow(ctx, r.db,
		`UPDATE users SET connected_account_ref = $2, updated_at = NOW() WHERE id = $1`,
		userID, accountRef,
	)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set connected account: %w", err)
	}

	r.log.Info("Connected account linked",
		logger.String("user_id", userID),
		logger.String("account_ref", accountRef),
	)
	return nil
}

// SetVerification records the outcome of an identity-verification session.
func (r *UserRepository) SetVerification(ctx context.Context, userID, sessionRef string, verified bool) error {
	err := execExpectOneRow(ctx, r.db,
		`UPDATE users
		 SET verification_session_ref = $2, identity_verified = $3, updated_at = NOW()
		 WHERE id = $1`,
		userID, sessionRef, verified,
	)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set verification: %w", err)
	}
	return nil
}
