package pg

import (
	"context"
	"errors"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Helper interno para validar userID string -> uuid
func parseUUID(id string) (uuid.UUID, error) { return uuid.Parse(id) }

func (s *Store) GetTwoFactor(ctx context.Context, userID string) (*repository.TwoFactorProfile, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, secret_encrypted, confirmed_at, last_used_at, created_at, updated_at
		FROM user_twofactor WHERE user_id = $1
	`, uid)
	var p repository.TwoFactorProfile
	if err := row.Scan(&p.UserID, &p.SecretEncrypted, &p.ConfirmedAt, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	p.UserID = uid.String()
	return &p, nil
}

// EnableTwoFactor persiste perfil + códigos en una sola transacción.
// Reemplaza cualquier perfil/códigos previos: los códigos de respaldo nunca
// sobreviven a un re-enrolamiento.
func (s *Store) EnableTwoFactor(ctx context.Context, userID, secretEnc string, codeHashes []string, at time.Time) error {
	uid, err := parseUUID(userID)
	if err != nil {
		return err
	}
	return s.withUserLock(ctx, uid.String(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_twofactor (user_id, secret_encrypted, confirmed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $3, $3)
			ON CONFLICT (user_id)
			DO UPDATE SET secret_encrypted = EXCLUDED.secret_encrypted,
						  confirmed_at = EXCLUDED.confirmed_at,
						  last_used_at = NULL,
						  updated_at = EXCLUDED.updated_at
		`, uid, secretEnc, at); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM twofactor_backup_code WHERE user_id = $1`, uid); err != nil {
			return err
		}
		for _, h := range codeHashes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO twofactor_backup_code (user_id, code_hash, created_at)
				VALUES ($1, $2, $3)
			`, uid, h, at); err != nil {
				return err
			}
		}
		return nil
	})
}

// DisableTwoFactor elimina atómicamente perfil y códigos. No toca trusted_device:
// solo un cambio de contraseña revoca dispositivos.
func (s *Store) DisableTwoFactor(ctx context.Context, userID string) error {
	uid, err := parseUUID(userID)
	if err != nil {
		return err
	}
	return s.withUserLock(ctx, uid.String(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_twofactor WHERE user_id = $1`, uid); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM twofactor_backup_code WHERE user_id = $1`, uid)
		return err
	})
}

func (s *Store) UpdateTwoFactorUsedAt(ctx context.Context, userID string, at time.Time) error {
	uid, err := parseUUID(userID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE user_twofactor SET last_used_at = $2, updated_at = $2 WHERE user_id = $1`, uid, at)
	return err
}

// UseBackupCode marca un código como consumido. La condición consumed_at IS NULL
// garantiza single-use: un código consumido jamás vuelve a estar disponible.
func (s *Store) UseBackupCode(ctx context.Context, userID, codeHash string, at time.Time) (bool, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE twofactor_backup_code
		SET consumed_at = $3
		WHERE user_id = $1 AND code_hash = $2 AND consumed_at IS NULL
	`, uid, codeHash, at)
	return tag.RowsAffected() == 1, err
}

func (s *Store) CountBackupCodes(ctx context.Context, userID string) (remaining, total int, err error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return 0, 0, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE consumed_at IS NULL), COUNT(*)
		FROM twofactor_backup_code WHERE user_id = $1
	`, uid).Scan(&remaining, &total)
	return remaining, total, err
}
