package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/api/internal/gate"
	"gatehouse/api/internal/models"
)

type AlertsRepo struct {
	pool *pgxpool.Pool
}

func NewAlertsRepo(pool *pgxpool.Pool) *AlertsRepo {
	return &AlertsRepo{pool: pool}
}

const alertColumns = `alert_id, site_id, cedula, full_name, badge_code, admission_kind, admission_id,
	reason, reported_by, resolved, opened_at, resolved_at, resolved_by, notes, resolve_notes`

func scanAlert(row pgx.Row) (models.Alert, error) {
	var al models.Alert
	err := row.Scan(
		&al.AlertID, &al.SiteID, &al.Cedula, &al.FullName, &al.BadgeCode, &al.AdmissionKind, &al.AdmissionID,
		&al.Reason, &al.ReportedBy, &al.Resolved, &al.OpenedAt, &al.ResolvedAt, &al.ResolvedBy, &al.Notes, &al.ResolveNotes,
	)
	return al, err
}

func (r *AlertsRepo) Insert(ctx context.Context, al models.Alert) (models.Alert, error) {
	if al.AlertID == uuid.Nil {
		al.AlertID = uuid.New()
	}
	if al.OpenedAt.IsZero() {
		al.OpenedAt = time.Now().UTC()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO custody_alerts (alert_id, site_id, cedula, full_name, badge_code, admission_kind, admission_id, reason, reported_by, resolved, opened_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)
		RETURNING `+alertColumns+`
	`, al.AlertID, al.SiteID, al.Cedula, al.FullName, al.BadgeCode, al.AdmissionKind, al.AdmissionID, al.Reason, al.ReportedBy, al.OpenedAt, al.Notes)
	return scanAlert(row)
}

func (r *AlertsRepo) FindByID(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID) (models.Alert, error) {
	al, err := scanAlert(r.pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM custody_alerts
		WHERE site_id = $1 AND alert_id = $2
	`, siteID, alertID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Alert{}, gate.ErrAlertNotFound
	}
	return al, err
}

func (r *AlertsRepo) FindPendingBySubject(ctx context.Context, siteID uuid.UUID, cedula string) ([]models.Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM custody_alerts
		WHERE site_id = $1 AND cedula = $2 AND resolved = FALSE
		ORDER BY opened_at ASC
	`, siteID, cedula)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		al, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (r *AlertsRepo) List(ctx context.Context, siteID uuid.UUID, includeResolved bool) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM custody_alerts
		WHERE site_id = $1 AND resolved = FALSE
		ORDER BY opened_at DESC
	`
	if includeResolved {
		query = `
			SELECT ` + alertColumns + `
			FROM custody_alerts
			WHERE site_id = $1
			ORDER BY opened_at DESC
		`
	}
	rows, err := r.pool.Query(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		al, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (r *AlertsRepo) CountOpen(ctx context.Context, siteID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM custody_alerts
		WHERE site_id = $1 AND resolved = FALSE
	`, siteID).Scan(&n)
	return n, err
}

// Resolve moves an alert to resolved exactly once. Zero rows updated on an
// existing alert means it was already resolved.
func (r *AlertsRepo) Resolve(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID, resolvedBy *uuid.UUID, notes string) (models.Alert, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE custody_alerts
		SET resolved = TRUE, resolved_at = now(), resolved_by = $3, resolve_notes = $4
		WHERE site_id = $1 AND alert_id = $2 AND resolved = FALSE
		RETURNING `+alertColumns+`
	`, siteID, alertID, resolvedBy, notes)
	al, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		_, findErr := r.FindByID(ctx, siteID, alertID)
		if errors.Is(findErr, gate.ErrAlertNotFound) {
			return models.Alert{}, gate.ErrAlertNotFound
		}
		return models.Alert{}, gate.ErrAlertAlreadyResolved
	}
	return al, err
}

func (r *AlertsRepo) Delete(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM custody_alerts
		WHERE site_id = $1 AND alert_id = $2
	`, siteID, alertID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return gate.ErrAlertNotFound
	}
	return nil
}
