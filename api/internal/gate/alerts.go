package gate

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"gatehouse/api/internal/models"
	"gatehouse/shared/events"
	"gatehouse/shared/metricsx"
)

func (s *Service) ListAlerts(ctx context.Context, siteID uuid.UUID, includeResolved bool) ([]models.Alert, error) {
	return s.alerts.List(ctx, siteID, includeResolved)
}

// ResolveAlert closes a custody incident and releases the badge it was
// holding out of circulation. The release is not skippable: an unresolved
// alert is the only thing keeping that badge unavailable once its holder has
// left, so resolution without release would leak the badge permanently.
func (s *Service) ResolveAlert(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID, resolver *uuid.UUID, notes string) (models.Alert, error) {
	if alertID == uuid.Nil {
		return models.Alert{}, ErrInvalidInput
	}

	resolved, err := s.alerts.Resolve(ctx, siteID, alertID, resolver, notes)
	if err != nil {
		return models.Alert{}, err
	}

	code := NormalizeBadgeCode(resolved.BadgeCode)
	if HasBadge(code) {
		category := BadgeCategoryFor(AccessCategory(resolved.AdmissionKind))
		releaseBadge, err := s.locks.Acquire(ctx, badgeLockKey(siteID, category, code))
		if err != nil {
			return models.Alert{}, err
		}
		defer releaseBadge(ctx)
		if err := s.badges.Release(ctx, siteID, category, code); err != nil {
			s.logger.Error(ctx, "alert_badge_release_failed", "alert resolved but badge release failed",
				slog.String("alert_id", resolved.AlertID.String()),
				slog.String("badge_code", code),
				slog.String("error", err.Error()),
			)
			return models.Alert{}, err
		}
	}

	s.emit(ctx, siteID, events.AggregateTypeAlert, resolved.AlertID, events.TopicGateAlerts, events.EventAlertResolved, map[string]any{
		"alert_id":   resolved.AlertID,
		"cedula":     resolved.Cedula,
		"badge_code": resolved.BadgeCode,
	})
	if n, err := s.countOpenAlerts(ctx, siteID); err == nil {
		metricsx.SetCustodyAlertsOpen(n)
	}
	s.logger.Info(ctx, "custody_alert_resolved", "badge custody alert resolved",
		slog.String("alert_id", resolved.AlertID.String()),
		slog.String("badge_code", resolved.BadgeCode),
	)
	return resolved, nil
}

// DeleteAlert is an administrative purge. It does not release the badge;
// inventory corrections go through the badge endpoints.
func (s *Service) DeleteAlert(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID) error {
	if alertID == uuid.Nil {
		return ErrInvalidInput
	}
	return s.alerts.Delete(ctx, siteID, alertID)
}

func (s *Service) countOpenAlerts(ctx context.Context, siteID uuid.UUID) (int, error) {
	open, err := s.alerts.List(ctx, siteID, false)
	if err != nil {
		return 0, err
	}
	return len(open), nil
}
