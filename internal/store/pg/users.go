package pg

import (
	"context"
	"errors"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetUserByID(ctx context.Context, userID string) (*repository.User, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, uid)
	var u repository.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdatePasswordAndRevokeDevices aplica la regla de invalidación en una sola
// transacción: si el UPDATE o el DELETE fallan, no queda ni la contraseña
// nueva ni un dispositivo confiable vivo de más.
func (s *Store) UpdatePasswordAndRevokeDevices(ctx context.Context, userID, newHash string, at time.Time) (int, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return 0, repository.ErrNotFound
	}
	var revoked int
	err = s.withUserLock(ctx, uid.String(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, uid, newHash, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		rows, err := tx.Query(ctx, `DELETE FROM trusted_device WHERE user_id = $1 RETURNING expires_at`, uid)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var exp time.Time
			if err := rows.Scan(&exp); err != nil {
				return err
			}
			if exp.After(at) {
				revoked++
			}
		}
		return rows.Err()
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}
