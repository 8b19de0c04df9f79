package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/urfave/cli/v3"
)

func (r *Runner) openDirectory() (*directory.Directory, *store, error) {
	st, err := r.openStore()
	if err != nil {
		return nil, nil, err
	}
	return directory.New(st.devices, r.logger), st, nil
}

// DevicesRegister adds a device to the directory.
func (r *Runner) DevicesRegister(ctx context.Context, cmd *cli.Command) error {
	dir, st, err := r.openDirectory()
	if err != nil {
		return err
	}
	defer st.Close()

	var credentialID *string
	if id := cmd.String("credential"); id != "" {
		credentialID = &id
	}

	if err := dir.Register(ctx, cmd.String("device"), credentialID); err != nil {
		return err
	}
	return r.writePlain("%s Device %s registered\n", styles.Ok("✓"), cmd.String("device"))
}

// DevicesVerify prints whether a device exists and is linked.
func (r *Runner) DevicesVerify(ctx context.Context, cmd *cli.Command) error {
	dir, st, err := r.openDirectory()
	if err != nil {
		return err
	}
	defer st.Close()

	v, err := dir.Verify(ctx, cmd.String("device"))
	if err != nil {
		return err
	}
	return r.writeJSON(v, false)
}

// DevicesLink binds a registered device to a credential.
func (r *Runner) DevicesLink(ctx context.Context, cmd *cli.Command) error {
	dir, st, err := r.openDirectory()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := dir.Link(ctx, cmd.String("device"), cmd.String("credential")); err != nil {
		return err
	}
	return r.writePlain("%s Device %s linked to %s\n", styles.Ok("✓"), cmd.String("device"), cmd.String("credential"))
}

type deviceRow struct {
	DeviceID     string    `json:"deviceId"`
	CredentialID string    `json:"credentialId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DevicesList prints every registered device.
func (r *Runner) DevicesList(ctx context.Context, cmd *cli.Command) error {
	dir, st, err := r.openDirectory()
	if err != nil {
		return err
	}
	defer st.Close()

	devices, err := dir.List(ctx)
	if err != nil {
		return err
	}

	rows := make([]deviceRow, 0, len(devices))
	for _, d := range devices {
		row := deviceRow{DeviceID: d.DeviceID, CreatedAt: d.CreatedAt}
		if d.Linked() {
			row.CredentialID = *d.CredentialID
		}
		rows = append(rows, row)
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	r.writePlain("%s\n\n", styles.Title(fmt.Sprintf("Found %d devices", len(rows))))
	for i, row := range rows {
		r.writePlain("%d. %s\n", i+1, row.DeviceID)
		if row.CredentialID != "" {
			r.writePlain("   Credential: %s\n", row.CredentialID)
		} else {
			r.writePlain("   Credential: %s\n", styles.Help("not linked"))
		}
		r.writePlain("   Registered: %s\n", row.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

type credentialRow struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CredentialsList prints stored credentials. Token values are never printed.
func (r *Runner) CredentialsList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	creds, err := st.creds.List(ctx)
	if err != nil {
		return err
	}

	rows := make([]credentialRow, 0, len(creds))
	for _, c := range creds {
		rows = append(rows, credentialRow{
			ID:        c.ID,
			ExpiresAt: time.UnixMilli(c.ExpiresAt).UTC(),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	r.writePlain("%s\n\n", styles.Title(fmt.Sprintf("Found %d credentials", len(rows))))
	for i, row := range rows {
		r.writePlain("%d. %s\n", i+1, row.ID)
		r.writePlain("   Access token expires: %s\n", row.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// CredentialsDelete removes a credential. Devices pointing at it become unlinked.
func (r *Runner) CredentialsDelete(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id := cmd.String("id")
	if err := st.creds.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("credential deleted", "credential", id)
	return r.writePlain("%s Credential %s deleted\n", styles.Ok("✓"), id)
}
