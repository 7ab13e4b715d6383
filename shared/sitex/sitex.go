package sitex

import "context"

type contextKey struct{}

type SiteContext struct {
	ID   string
	Slug string
}

func WithSite(ctx context.Context, site SiteContext) context.Context {
	return context.WithValue(ctx, contextKey{}, site)
}

func FromContext(ctx context.Context) (SiteContext, bool) {
	if v := ctx.Value(contextKey{}); v != nil {
		if s, ok := v.(SiteContext); ok {
			return s, true
		}
	}
	return SiteContext{}, false
}

func SiteIDFromContext(ctx context.Context) string {
	if s, ok := FromContext(ctx); ok {
		return s.ID
	}
	return ""
}
