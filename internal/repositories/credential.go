package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/shared"
)

// CredentialRepository persists [models.Credential] rows.
type CredentialRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db, now: time.Now}
}

// Create inserts a new credential with a generated ID.
func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := r.now().UTC()
	cred.ID = shared.GenerateID()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	query := `
		INSERT INTO credentials (id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, cred.ID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	return nil
}

// Get retrieves a credential by ID.
func (r *CredentialRepository) Get(ctx context.Context, id string) (*models.Credential, error) {
	query := `
		SELECT id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM credentials
		WHERE id = ?
	`

	var cred models.Credential
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&cred.ID, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	return &cred, nil
}

// UpdateTokens writes the access token, refresh token and expiry of next in a single statement.
//
// The update only applies while the stored refresh token still equals previousRefreshToken;
// otherwise [ErrStaleWrite] is returned and the row is left untouched.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, previousRefreshToken string, next *models.Credential) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := r.now().UTC()

	query := `
		UPDATE credentials
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND refresh_token = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		next.AccessToken, next.RefreshToken, next.ExpiresAt, now, next.ID, previousRefreshToken,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: credential %s", ErrStaleWrite, next.ID)
	}

	next.UpdatedAt = now
	return nil
}

// Delete removes a credential. Devices pointing at it are unlinked by the foreign key.
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: credential %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all credentials ordered by creation time.
func (r *CredentialRepository) List(ctx context.Context) ([]*models.Credential, error) {
	query := `
		SELECT id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM credentials
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		var cred models.Credential
		if err := rows.Scan(
			&cred.ID, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt, &cred.CreatedAt, &cred.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return creds, nil
}
