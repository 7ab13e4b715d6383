package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/api/internal/models"
)

type SitesRepo struct {
	pool *pgxpool.Pool
}

func NewSitesRepo(pool *pgxpool.Pool) *SitesRepo {
	return &SitesRepo{pool: pool}
}

func (r *SitesRepo) CreateSite(ctx context.Context, slug string, name string) (models.Site, error) {
	var site models.Site
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sites (slug, name)
		VALUES ($1, $2)
		RETURNING site_id, slug, name, created_at
	`, slug, name).Scan(&site.SiteID, &site.Slug, &site.Name, &site.CreatedAt)
	return site, err
}

func (r *SitesRepo) GetSiteByID(ctx context.Context, siteID uuid.UUID) (models.Site, error) {
	var site models.Site
	err := r.pool.QueryRow(ctx, `
		SELECT site_id, slug, name, created_at
		FROM sites
		WHERE site_id = $1
	`, siteID).Scan(&site.SiteID, &site.Slug, &site.Name, &site.CreatedAt)
	return site, err
}

func (r *SitesRepo) GetSiteBySlug(ctx context.Context, slug string) (models.Site, error) {
	var site models.Site
	err := r.pool.QueryRow(ctx, `
		SELECT site_id, slug, name, created_at
		FROM sites
		WHERE slug = $1
	`, slug).Scan(&site.SiteID, &site.Slug, &site.Name, &site.CreatedAt)
	return site, err
}
