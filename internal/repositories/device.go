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

// DeviceRepository persists [models.Device] rows keyed by their unique device identifier.
type DeviceRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewDeviceRepository creates a new [DeviceRepository] with the given database connection
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db, now: time.Now}
}

// Create inserts a device. A nil credentialID registers the device unlinked.
//
// Returns [shared.ErrConstraintViolation] when deviceID is already registered and
// [shared.ErrValidation] when credentialID does not reference a stored credential.
func (r *DeviceRepository) Create(ctx context.Context, deviceID string, credentialID *string) (*models.Device, error) {
	now := r.now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, credential_id, created_at) VALUES (?, ?, ?)`,
		deviceID, nullable(credentialID), now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: device %s already registered", shared.ErrConstraintViolation, deviceID)
	}
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: unknown credential", shared.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read device id: %w", err)
	}

	return &models.Device{ID: id, DeviceID: deviceID, CredentialID: credentialID, CreatedAt: now}, nil
}

// GetByDeviceID retrieves a device by its identifier.
func (r *DeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT id, device_id, credential_id, created_at FROM devices WHERE device_id = ?`
	return scanDevice(r.db.QueryRowContext(ctx, query, deviceID))
}

// Link points an unlinked device at credentialID.
//
// Linking a device to the credential it already references is a no-op. A device linked to a
// different credential is left unchanged and [shared.ErrConstraintViolation] is returned.
func (r *DeviceRepository) Link(ctx context.Context, deviceID, credentialID string) error {
	query := `
		UPDATE devices
		SET credential_id = ?
		WHERE device_id = ? AND (credential_id IS NULL OR credential_id = ?)
	`

	result, err := r.db.ExecContext(ctx, query, credentialID, deviceID, credentialID)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown credential", shared.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("failed to link device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	if _, err := r.GetByDeviceID(ctx, deviceID); err != nil {
		return err
	}
	return fmt.Errorf("%w: device %s is linked to another account", shared.ErrConstraintViolation, deviceID)
}

// List retrieves all devices in registration order.
func (r *DeviceRepository) List(ctx context.Context) ([]*models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, device_id, credential_id, created_at FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return devices, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*models.Device, error) {
	var (
		device       models.Device
		credentialID sql.NullString
	)

	err := row.Scan(&device.ID, &device.DeviceID, &credentialID, &device.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: device", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	if credentialID.Valid {
		device.CredentialID = &credentialID.String
	}

	return &device, nil
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
