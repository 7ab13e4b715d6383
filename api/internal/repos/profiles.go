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

type ProfilesRepo struct {
	pool *pgxpool.Pool
}

func NewProfilesRepo(pool *pgxpool.Pool) *ProfilesRepo {
	return &ProfilesRepo{pool: pool}
}

const profileColumns = `profile_id, site_id, cedula, full_name, category, company,
	doc_expires_on, doc_status, doc_checked_at, created_at, updated_at`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ProfileID, &p.SiteID, &p.Cedula, &p.FullName, &p.Category, &p.Company,
		&p.DocExpiresOn, &p.DocStatus, &p.DocCheckedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *ProfilesRepo) Upsert(ctx context.Context, p models.Profile) (models.Profile, error) {
	if p.ProfileID == uuid.Nil {
		p.ProfileID = uuid.New()
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (profile_id, site_id, cedula, full_name, category, company, doc_expires_on, doc_status, doc_checked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (site_id, cedula) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			category = EXCLUDED.category,
			company = EXCLUDED.company,
			doc_expires_on = COALESCE(EXCLUDED.doc_expires_on, profiles.doc_expires_on),
			doc_status = CASE WHEN EXCLUDED.doc_status <> '' THEN EXCLUDED.doc_status ELSE profiles.doc_status END,
			doc_checked_at = COALESCE(EXCLUDED.doc_checked_at, profiles.doc_checked_at),
			updated_at = EXCLUDED.updated_at
		RETURNING `+profileColumns+`
	`, p.ProfileID, p.SiteID, p.Cedula, p.FullName, p.Category, p.Company, p.DocExpiresOn, p.DocStatus, p.DocCheckedAt, now)
	return scanProfile(row)
}

func (r *ProfilesRepo) Find(ctx context.Context, siteID uuid.UUID, cedula string) (models.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE site_id = $1 AND cedula = $2
	`, siteID, cedula))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Profile{}, gate.ErrSubjectNotFound
	}
	return p, err
}

func (r *ProfilesRepo) UpdateDocumentStatus(ctx context.Context, siteID uuid.UUID, cedula string, status string, expiresOn *time.Time, checkedAt time.Time) (models.Profile, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE profiles
		SET doc_status = $3, doc_expires_on = $4, doc_checked_at = $5, updated_at = now()
		WHERE site_id = $1 AND cedula = $2
		RETURNING `+profileColumns+`
	`, siteID, cedula, status, expiresOn, checkedAt)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Profile{}, gate.ErrSubjectNotFound
	}
	return p, err
}
