package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/api/internal/models"
)

var ErrRestrictionNotFound = errors.New("restriction not found")

type RestrictionsRepo struct {
	pool *pgxpool.Pool
}

func NewRestrictionsRepo(pool *pgxpool.Pool) *RestrictionsRepo {
	return &RestrictionsRepo{pool: pool}
}

func (r *RestrictionsRepo) CheckBlocked(ctx context.Context, siteID uuid.UUID, cedula string) (bool, string, string, error) {
	var severity, reason string
	err := r.pool.QueryRow(ctx, `
		SELECT severity, reason
		FROM restrictions
		WHERE site_id = $1 AND cedula = $2 AND active = TRUE
	`, siteID, cedula).Scan(&severity, &reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", "", nil
	}
	if err != nil {
		return false, "", "", err
	}
	return true, severity, reason, nil
}

func (r *RestrictionsRepo) Add(ctx context.Context, siteID uuid.UUID, cedula string, severity string, reason string, addedBy *uuid.UUID) (models.RestrictionEntry, error) {
	var entry models.RestrictionEntry
	err := r.pool.QueryRow(ctx, `
		INSERT INTO restrictions (site_id, cedula, severity, reason, active, added_by, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		ON CONFLICT (site_id, cedula) DO UPDATE SET
			severity = EXCLUDED.severity,
			reason = EXCLUDED.reason,
			active = TRUE,
			added_by = EXCLUDED.added_by
		RETURNING restriction_id, site_id, cedula, severity, reason, added_by, created_at
	`, siteID, cedula, severity, reason, addedBy, time.Now().UTC()).
		Scan(&entry.RestrictionID, &entry.SiteID, &entry.Cedula, &entry.Severity, &entry.Reason, &entry.AddedBy, &entry.CreatedAt)
	return entry, err
}

func (r *RestrictionsRepo) Deactivate(ctx context.Context, siteID uuid.UUID, cedula string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE restrictions
		SET active = FALSE
		WHERE site_id = $1 AND cedula = $2 AND active = TRUE
	`, siteID, cedula)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRestrictionNotFound
	}
	return nil
}

func (r *RestrictionsRepo) List(ctx context.Context, siteID uuid.UUID) ([]models.RestrictionEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT restriction_id, site_id, cedula, severity, reason, added_by, created_at
		FROM restrictions
		WHERE site_id = $1 AND active = TRUE
		ORDER BY created_at DESC
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RestrictionEntry
	for rows.Next() {
		var entry models.RestrictionEntry
		if err := rows.Scan(&entry.RestrictionID, &entry.SiteID, &entry.Cedula, &entry.Severity, &entry.Reason, &entry.AddedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
