package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// OwnerDirectory reads push tokens from the users table.
type OwnerDirectory struct {
	db DBTX
}

// NewOwnerDirectory constructs a directory.
func NewOwnerDirectory(db DBTX) *OwnerDirectory {
	return &OwnerDirectory{db: db}
}

// PushTarget returns the owner's FCM token, or "" when none is registered.
func (d *OwnerDirectory) PushTarget(ctx context.Context, ownerID int64) (string, error) {
	if d == nil || d.db == nil {
		return "", errors.New("owner directory: nil db")
	}
	var token sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT fcm_token FROM users WHERE id = $1`, ownerID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return token.String, nil
}
