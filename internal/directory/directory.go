// package directory maps hardware device identifiers to stored credentials
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/shared"
)

// maxDeviceIDLength bounds identifiers accepted from devices; ESP32 firmware sends a UUID.
const maxDeviceIDLength = 128

// Store is the device persistence. Implemented by [repositories.DeviceRepository].
type Store interface {
	Create(ctx context.Context, deviceID string, credentialID *string) (*models.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	Link(ctx context.Context, deviceID, credentialID string) error
	List(ctx context.Context) ([]*models.Device, error)
}

// Verification is the result of [Directory.Verify].
type Verification struct {
	Valid           bool `json:"valid"`
	LinkedToAccount bool `json:"linkedToAccount"`
}

// Directory registers, verifies and resolves devices.
type Directory struct {
	store  Store
	logger *log.Logger
}

// New creates a [Directory] backed by store.
func New(store Store, logger *log.Logger) *Directory {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Directory{store: store, logger: logger}
}

// NormalizeID trims the identifier and rejects empty or oversized values with [shared.ErrValidation].
func NormalizeID(deviceID string) (string, error) {
	id := strings.TrimSpace(deviceID)
	switch {
	case id == "":
		return "", fmt.Errorf("%w: device id is required", shared.ErrValidation)
	case len(id) > maxDeviceIDLength:
		return "", fmt.Errorf("%w: device id longer than %d characters", shared.ErrValidation, maxDeviceIDLength)
	}
	return id, nil
}

// Register records a new device, linked to credentialID when it is non-nil.
func (d *Directory) Register(ctx context.Context, deviceID string, credentialID *string) error {
	id, err := NormalizeID(deviceID)
	if err != nil {
		return err
	}

	device, err := d.store.Create(ctx, id, credentialID)
	if err != nil {
		return err
	}

	d.logger.Info("device registered", "device", device.DeviceID, "linked", device.Linked())
	return nil
}

// Resolve returns the credential a device points at.
//
// Unknown devices yield [shared.ErrNotFound]; known but unlinked devices yield [shared.ErrNotLinked].
func (d *Directory) Resolve(ctx context.Context, deviceID string) (string, error) {
	id, err := NormalizeID(deviceID)
	if err != nil {
		return "", err
	}

	device, err := d.store.GetByDeviceID(ctx, id)
	if err != nil {
		return "", err
	}
	if !device.Linked() {
		return "", fmt.Errorf("%w: %s", shared.ErrNotLinked, id)
	}
	return *device.CredentialID, nil
}

// Verify reports whether a device is registered and whether it is linked.
//
// An unknown device is not an error: the result has Valid false.
func (d *Directory) Verify(ctx context.Context, deviceID string) (Verification, error) {
	id, err := NormalizeID(deviceID)
	if err != nil {
		return Verification{}, err
	}

	device, err := d.store.GetByDeviceID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return Verification{}, nil
	}
	if err != nil {
		return Verification{}, err
	}

	return Verification{Valid: true, LinkedToAccount: device.Linked()}, nil
}

// Link points an unlinked device at credentialID.
func (d *Directory) Link(ctx context.Context, deviceID, credentialID string) error {
	id, err := NormalizeID(deviceID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("%w: credential id is required", shared.ErrValidation)
	}

	if err := d.store.Link(ctx, id, credentialID); err != nil {
		return err
	}

	d.logger.Info("device linked", "device", id)
	return nil
}

// List returns every registered device.
func (d *Directory) List(ctx context.Context) ([]*models.Device, error) {
	return d.store.List(ctx)
}
