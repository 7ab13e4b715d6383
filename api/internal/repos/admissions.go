package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/api/internal/gate"
	"gatehouse/api/internal/models"
)

type AdmissionsRepo struct {
	pool *pgxpool.Pool
}

func NewAdmissionsRepo(pool *pgxpool.Pool) *AdmissionsRepo {
	return &AdmissionsRepo{pool: pool}
}

func (r *AdmissionsRepo) Pool() *pgxpool.Pool { return r.pool }

const admissionColumns = `admission_id, site_id, cedula, full_name, category, badge_code,
	destination, carrier, reason, entered_at, exited_at, entered_by, exited_by,
	observations, overridden, created_at, updated_at`

func scanAdmission(row pgx.Row) (models.AdmissionRecord, error) {
	var a models.AdmissionRecord
	err := row.Scan(
		&a.AdmissionID, &a.SiteID, &a.Cedula, &a.FullName, &a.Category, &a.BadgeCode,
		&a.Destination, &a.Carrier, &a.Reason, &a.EnteredAt, &a.ExitedAt, &a.EnteredBy, &a.ExitedBy,
		&a.Observations, &a.Overridden, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// Insert relies on the partial unique index over (site_id, cedula) where
// exited_at is null. A duplicate key there means the subject is already
// inside, no matter how the request raced.
func (r *AdmissionsRepo) Insert(ctx context.Context, a models.AdmissionRecord) (models.AdmissionRecord, error) {
	if a.AdmissionID == uuid.Nil {
		a.AdmissionID = uuid.New()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO admissions (
			admission_id, site_id, cedula, full_name, category, badge_code,
			destination, carrier, reason, entered_at, entered_by, observations, overridden,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+admissionColumns+`
	`, a.AdmissionID, a.SiteID, a.Cedula, a.FullName, a.Category, a.BadgeCode,
		a.Destination, a.Carrier, a.Reason, a.EnteredAt, a.EnteredBy, a.Observations, a.Overridden,
		a.CreatedAt, a.UpdatedAt)
	inserted, err := scanAdmission(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.AdmissionRecord{}, gate.ErrSubjectInside
		}
		return models.AdmissionRecord{}, err
	}
	return inserted, nil
}

func (r *AdmissionsRepo) FindByID(ctx context.Context, siteID uuid.UUID, admissionID uuid.UUID) (models.AdmissionRecord, error) {
	a, err := scanAdmission(r.pool.QueryRow(ctx, `
		SELECT `+admissionColumns+`
		FROM admissions
		WHERE site_id = $1 AND admission_id = $2
	`, siteID, admissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AdmissionRecord{}, gate.ErrAdmissionNotFound
	}
	return a, err
}

func (r *AdmissionsRepo) FindOpenBySubject(ctx context.Context, siteID uuid.UUID, cedula string) (models.AdmissionRecord, error) {
	a, err := scanAdmission(r.pool.QueryRow(ctx, `
		SELECT `+admissionColumns+`
		FROM admissions
		WHERE site_id = $1 AND cedula = $2 AND exited_at IS NULL
	`, siteID, cedula))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AdmissionRecord{}, gate.ErrAdmissionNotFound
	}
	return a, err
}

// Close records the exit exactly once. The WHERE clause guards against a
// concurrent close; zero rows means someone else got there first.
func (r *AdmissionsRepo) Close(ctx context.Context, siteID uuid.UUID, admissionID uuid.UUID, exitedAt time.Time, exitedBy *uuid.UUID, observations string) (models.AdmissionRecord, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE admissions
		SET exited_at = $3, exited_by = $4, observations = $5, updated_at = now()
		WHERE site_id = $1 AND admission_id = $2 AND exited_at IS NULL
		RETURNING `+admissionColumns+`
	`, siteID, admissionID, exitedAt, exitedBy, observations)
	a, err := scanAdmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		_, findErr := r.FindByID(ctx, siteID, admissionID)
		if errors.Is(findErr, gate.ErrAdmissionNotFound) {
			return models.AdmissionRecord{}, gate.ErrAdmissionNotFound
		}
		return models.AdmissionRecord{}, gate.ErrAdmissionClosed
	}
	return a, err
}

// Delete removes an admission row. Used to roll back an insert whose badge
// reservation failed.
func (r *AdmissionsRepo) Delete(ctx context.Context, siteID uuid.UUID, admissionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM admissions
		WHERE site_id = $1 AND admission_id = $2
	`, siteID, admissionID)
	return err
}

func (r *AdmissionsRepo) ListOpen(ctx context.Context, siteID uuid.UUID) ([]models.AdmissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+admissionColumns+`
		FROM admissions
		WHERE site_id = $1 AND exited_at IS NULL
		ORDER BY entered_at ASC
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdmissionRecord
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AdmissionsRepo) ListOpenAllSites(ctx context.Context) ([]models.AdmissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+admissionColumns+`
		FROM admissions
		WHERE exited_at IS NULL
		ORDER BY entered_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdmissionRecord
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AdmissionsRepo) CountOpenByCategory(ctx context.Context, siteID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM admissions
		WHERE site_id = $1 AND exited_at IS NULL
		GROUP BY category
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

func (r *AdmissionsRepo) InsertAdmissionEvent(ctx context.Context, ev models.AdmissionEvent) error {
	if ev.EventID == uuid.Nil {
		ev.EventID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admission_events (event_id, site_id, admission_id, event_type, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.EventID, ev.SiteID, ev.AdmissionID, ev.EventType, ev.OccurredAt, ev.Payload)
	return err
}
