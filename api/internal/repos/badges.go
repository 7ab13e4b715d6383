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

type BadgesRepo struct {
	pool *pgxpool.Pool
}

func NewBadgesRepo(pool *pgxpool.Pool) *BadgesRepo {
	return &BadgesRepo{pool: pool}
}

const badgeColumns = `badge_id, site_id, category, code, in_use, condition, created_at, updated_at`

func scanBadge(row pgx.Row) (models.Badge, error) {
	var b models.Badge
	err := row.Scan(&b.BadgeID, &b.SiteID, &b.Category, &b.Code, &b.InUse, &b.Condition, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *BadgesRepo) Get(ctx context.Context, siteID uuid.UUID, category string, code string) (models.Badge, error) {
	b, err := scanBadge(r.pool.QueryRow(ctx, `
		SELECT `+badgeColumns+`
		FROM badges
		WHERE site_id = $1 AND category = $2 AND code = $3
	`, siteID, category, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Badge{}, gate.ErrBadgeNotFound
	}
	return b, err
}

func (r *BadgesRepo) IsAvailable(ctx context.Context, siteID uuid.UUID, category string, code string) (bool, error) {
	var inUse bool
	var condition string
	err := r.pool.QueryRow(ctx, `
		SELECT in_use, condition
		FROM badges
		WHERE site_id = $1 AND category = $2 AND code = $3
	`, siteID, category, code).Scan(&inUse, &condition)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, gate.ErrBadgeNotFound
	}
	if err != nil {
		return false, err
	}
	return !inUse && condition == models.BadgeConditionActive, nil
}

// Reserve flips a free active badge to in_use. Zero rows updated means the
// badge was taken or unusable between the availability check and the reserve.
func (r *BadgesRepo) Reserve(ctx context.Context, siteID uuid.UUID, category string, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE badges
		SET in_use = TRUE, updated_at = now()
		WHERE site_id = $1 AND category = $2 AND code = $3 AND in_use = FALSE AND condition = $4
	`, siteID, category, code, models.BadgeConditionActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Release is idempotent. Releasing a badge that is already free or does not
// exist is not an error.
func (r *BadgesRepo) Release(ctx context.Context, siteID uuid.UUID, category string, code string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE badges
		SET in_use = FALSE, updated_at = now()
		WHERE site_id = $1 AND category = $2 AND code = $3
	`, siteID, category, code)
	return err
}

func (r *BadgesRepo) SetCondition(ctx context.Context, siteID uuid.UUID, category string, code string, condition string) (models.Badge, error) {
	b, err := scanBadge(r.pool.QueryRow(ctx, `
		UPDATE badges
		SET condition = $4, updated_at = now()
		WHERE site_id = $1 AND category = $2 AND code = $3
		RETURNING `+badgeColumns+`
	`, siteID, category, code, condition))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Badge{}, gate.ErrBadgeNotFound
	}
	return b, err
}

func (r *BadgesRepo) Create(ctx context.Context, siteID uuid.UUID, category string, code string) (models.Badge, bool, error) {
	now := time.Now().UTC()
	b, err := scanBadge(r.pool.QueryRow(ctx, `
		INSERT INTO badges (site_id, category, code, in_use, condition, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5, $5)
		ON CONFLICT (site_id, category, code) DO NOTHING
		RETURNING `+badgeColumns+`
	`, siteID, category, code, models.BadgeConditionActive, now))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.Get(ctx, siteID, category, code)
		if getErr != nil {
			return models.Badge{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return models.Badge{}, false, err
	}
	return b, true, nil
}

// CreateRange is best effort per code: a duplicate does not abort the rest.
// Returns the count actually created.
func (r *BadgesRepo) CreateRange(ctx context.Context, siteID uuid.UUID, category string, codes []string) (int, error) {
	now := time.Now().UTC()
	created := 0
	for _, code := range codes {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO badges (site_id, category, code, in_use, condition, created_at, updated_at)
			VALUES ($1, $2, $3, FALSE, $4, $5, $5)
			ON CONFLICT (site_id, category, code) DO NOTHING
		`, siteID, category, code, models.BadgeConditionActive, now)
		if err != nil {
			return created, err
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func (r *BadgesRepo) List(ctx context.Context, siteID uuid.UUID, category string, onlyInUse bool) ([]models.Badge, error) {
	query := `
		SELECT ` + badgeColumns + `
		FROM badges
		WHERE site_id = $1 AND category = $2
		ORDER BY code ASC
	`
	if onlyInUse {
		query = `
			SELECT ` + badgeColumns + `
			FROM badges
			WHERE site_id = $1 AND category = $2 AND in_use = TRUE
			ORDER BY code ASC
		`
	}
	rows, err := r.pool.Query(ctx, query, siteID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
