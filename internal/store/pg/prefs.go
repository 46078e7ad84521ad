package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const prefSecurityAlerts = "security_alerts"

// GetSecurityAlerts retorna la preferencia de alertas. Sin fila => true.
func (s *Store) GetSecurityAlerts(ctx context.Context, userID string) (bool, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return true, err
	}
	var enabled bool
	err = s.pool.QueryRow(ctx, `
		SELECT enabled FROM security_preference WHERE user_id = $1 AND pref_key = $2
	`, uid, prefSecurityAlerts).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return enabled, nil
}

// SetSecurityAlerts hace upsert y retorna el valor previo (para que el caller
// pueda revertir una actualización optimista).
func (s *Store) SetSecurityAlerts(ctx context.Context, userID string, enabled bool) (bool, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return true, err
	}
	previous := true
	err = s.withUserLock(ctx, uid.String(), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT enabled FROM security_preference WHERE user_id = $1 AND pref_key = $2
		`, uid, prefSecurityAlerts).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO security_preference (user_id, pref_key, enabled, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, pref_key)
			DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
		`, uid, prefSecurityAlerts, enabled, time.Now().UTC())
		return err
	})
	return previous, err
}
