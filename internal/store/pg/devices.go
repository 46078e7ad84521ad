package pg

import (
	"context"
	"errors"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

const deviceColumns = `id, user_id, fingerprint, device_type, browser, os, ip_address, city, country, created_at, last_used, expires_at`

func scanDevice(row pgx.Row) (*repository.TrustedDevice, error) {
	var d repository.TrustedDevice
	err := row.Scan(&d.ID, &d.UserID, &d.Fingerprint, &d.DeviceType, &d.Browser, &d.OS,
		&d.IPAddress, &d.City, &d.Country, &d.CreatedAt, &d.LastUsed, &d.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListLiveDevices(ctx context.Context, userID string, now time.Time) ([]repository.TrustedDevice, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM trusted_device
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY last_used DESC
	`, uid, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.TrustedDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// TrustDevice serializa por usuario: purga las entradas vencidas del propio
// usuario (evaluación perezosa), refresca un duplicado vigente o inserta una
// entrada nueva con expires_at = now + TrustTTL. No extiende expiraciones.
func (s *Store) TrustDevice(ctx context.Context, d repository.TrustedDevice, now time.Time, maxDevices int) (*repository.TrustedDevice, bool, error) {
	uid, err := parseUUID(d.UserID)
	if err != nil {
		return nil, false, err
	}

	var result *repository.TrustedDevice
	var created bool
	err = s.withUserLock(ctx, uid.String(), func(tx pgx.Tx) error {
		// Purga perezosa: una entrada vencida se trata como ausente.
		if _, err := tx.Exec(ctx, `DELETE FROM trusted_device WHERE user_id = $1 AND expires_at <= $2`, uid, now); err != nil {
			return err
		}

		// ¿Duplicado vigente? Refrescar last_used, jamás expires_at.
		existing, err := scanDevice(tx.QueryRow(ctx, `
			UPDATE trusted_device SET last_used = $3
			WHERE user_id = $1 AND fingerprint = $2
			RETURNING `+deviceColumns,
			uid, d.Fingerprint, now))
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		var live int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM trusted_device WHERE user_id = $1`, uid).Scan(&live); err != nil {
			return err
		}
		if maxDevices > 0 && live >= maxDevices {
			return repository.ErrDeviceLimit
		}

		inserted, err := scanDevice(tx.QueryRow(ctx, `
			INSERT INTO trusted_device (id, user_id, fingerprint, device_type, browser, os, ip_address, city, country, created_at, last_used, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11)
			RETURNING `+deviceColumns,
			d.ID, uid, d.Fingerprint, d.DeviceType, d.Browser, d.OS,
			d.IPAddress, d.City, d.Country, now, now.Add(repository.TrustTTL)))
		if err != nil {
			return err
		}
		result = inserted
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *Store) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	uid, err := parseUUID(userID)
	if err != nil {
		return repository.ErrNotFound
	}
	did, err := parseUUID(deviceID)
	if err != nil {
		return repository.ErrNotFound
	}
	// Scope por usuario: un id ajeno es indistinguible de uno inexistente.
	tag, err := s.pool.Exec(ctx, `DELETE FROM trusted_device WHERE id = $1 AND user_id = $2`, did, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeAllDevices borra todo y retorna cuántas entradas seguían vigentes al
// momento de ejecutar.
func (s *Store) RevokeAllDevices(ctx context.Context, userID string, now time.Time) (int, error) {
	uid, err := parseUUID(userID)
	if err != nil {
		return 0, repository.ErrNotFound
	}
	var revoked int
	err = s.withUserLock(ctx, uid.String(), func(tx pgx.Tx) error {
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
			if exp.After(now) {
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

func (s *Store) PurgeExpiredDevices(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trusted_device WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
