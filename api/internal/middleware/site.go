package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"gatehouse/api/internal/repos"
	"gatehouse/shared/authx"
	"gatehouse/shared/httpx"
	"gatehouse/shared/sitex"
)

type SiteMiddleware struct {
	Sites *repos.SitesRepo
	Skip  func(*http.Request) bool
}

func (m SiteMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		siteID := strings.TrimSpace(r.Header.Get("X-Site-ID"))
		siteSlug := strings.TrimSpace(r.Header.Get("X-Site-Slug"))
		if siteID == "" && siteSlug == "" {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing site header", nil)
			return
		}

		var site sitex.SiteContext
		if siteSlug != "" {
			if m.Sites == nil {
				httpx.WriteError(w, r, http.StatusServiceUnavailable, "FAILED_PRECONDITION", "site repository not configured", nil)
				return
			}
			record, err := m.Sites.GetSiteBySlug(r.Context(), siteSlug)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "site not found", nil)
					return
				}
				httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to resolve site", nil)
				return
			}
			if siteID != "" && siteID != record.SiteID.String() {
				httpx.WriteError(w, r, http.StatusForbidden, "FORBIDDEN", "site mismatch", nil)
				return
			}
			siteID = record.SiteID.String()
			site.Slug = record.Slug
		}

		if siteID == "" {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing site id", nil)
			return
		}

		if auth, ok := authx.FromContext(r.Context()); ok {
			if err := validateSiteClaims(auth.Claims, siteID); err != nil {
				httpx.WriteError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
				return
			}
		}

		site.ID = siteID
		if site.Slug == "" && siteSlug != "" {
			site.Slug = siteSlug
		}

		ctx := sitex.WithSite(r.Context(), site)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validateSiteClaims(claims map[string]any, siteID string) error {
	if claims == nil || siteID == "" {
		return nil
	}
	if v, ok := claims["site_id"]; ok {
		claimSiteID := strings.TrimSpace(fmt.Sprint(v))
		if claimSiteID != "" && claimSiteID != siteID {
			return errors.New("site claim mismatch")
		}
	}
	if v, ok := claims["sites"]; ok {
		allowed := map[string]struct{}{}
		switch t := v.(type) {
		case []string:
			for _, item := range t {
				item = strings.TrimSpace(item)
				if item != "" {
					allowed[item] = struct{}{}
				}
			}
		case []any:
			for _, item := range t {
				val := strings.TrimSpace(fmt.Sprint(item))
				if val != "" {
					allowed[val] = struct{}{}
				}
			}
		case string:
			for _, item := range strings.Fields(t) {
				item = strings.TrimSpace(item)
				if item != "" {
					allowed[item] = struct{}{}
				}
			}
		default:
			val := strings.TrimSpace(fmt.Sprint(t))
			if val != "" {
				allowed[val] = struct{}{}
			}
		}
		if len(allowed) > 0 {
			if _, ok := allowed[siteID]; !ok {
				return errors.New("site not allowed")
			}
		}
	}
	return nil
}
