package store

import (
	"database/sql"
	"time"

	"github.com/brewlog/brewsync/internal/crypto"
	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/models"
)

// SaveCredentials persists the token pair, replacing any previous one.
// The refresh token is encrypted at rest with a machine-derived key; the
// short-lived access token is stored as-is.
func (s *Store) SaveCredentials(creds *models.Credentials) error {
	encRefresh, err := crypto.EncryptString(creds.RefreshToken, crypto.MachineKey())
	if err != nil {
		return errors.Wrap(errors.ErrStore, "failed to encrypt refresh token", err)
	}

	_, err = s.db.Exec(`INSERT INTO credentials (id, access_token, refresh_token, user_id, username, updated_at)
	                    VALUES (1, ?, ?, ?, ?, ?)
	                    ON CONFLICT(id) DO UPDATE SET
	                        access_token = excluded.access_token,
	                        refresh_token = excluded.refresh_token,
	                        user_id = excluded.user_id,
	                        username = excluded.username,
	                        updated_at = excluded.updated_at`,
		creds.AccessToken, encRefresh, creds.UserID, creds.Username, time.Now().Unix())
	if err != nil {
		return errors.Wrap(errors.ErrStore, "failed to save credentials", err)
	}
	return nil
}

// LoadCredentials returns the persisted token pair, or nil when the user
// has never logged in. A refresh token that cannot be decrypted (moved
// database, changed machine) is treated as absent.
func (s *Store) LoadCredentials() (*models.Credentials, error) {
	var creds models.Credentials
	var encRefresh string
	err := s.db.QueryRow(`SELECT access_token, refresh_token, user_id, username
	                      FROM credentials WHERE id = 1`).
		Scan(&creds.AccessToken, &encRefresh, &creds.UserID, &creds.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "failed to load credentials", err)
	}

	refresh, err := crypto.DecryptString(encRefresh, crypto.MachineKey())
	if err != nil {
		return nil, nil
	}
	creds.RefreshToken = refresh
	return &creds, nil
}

// ClearCredentials removes the persisted token pair. Safe to call when
// none exist.
func (s *Store) ClearCredentials() error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE id = 1`); err != nil {
		return errors.Wrap(errors.ErrStore, "failed to clear credentials", err)
	}
	return nil
}
