package gate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gatehouse/api/internal/models"
	"gatehouse/shared/events"
	"gatehouse/shared/lockx"
	"gatehouse/shared/logx"
	"gatehouse/shared/metricsx"
)

type AdmissionStore interface {
	Insert(ctx context.Context, rec models.AdmissionRecord) (models.AdmissionRecord, error)
	FindByID(ctx context.Context, siteID uuid.UUID, admissionID uuid.UUID) (models.AdmissionRecord, error)
	FindOpenBySubject(ctx context.Context, siteID uuid.UUID, cedula string) (models.AdmissionRecord, error)
	Close(ctx context.Context, siteID uuid.UUID, admissionID uuid.UUID, exitedAt time.Time, exitedBy *uuid.UUID, observations string) (models.AdmissionRecord, error)
	Delete(ctx context.Context, siteID uuid.UUID, admissionID uuid.UUID) error
	ListOpen(ctx context.Context, siteID uuid.UUID) ([]models.AdmissionRecord, error)
}

type BadgeStore interface {
	IsAvailable(ctx context.Context, siteID uuid.UUID, category string, code string) (bool, error)
	Reserve(ctx context.Context, siteID uuid.UUID, category string, code string) (bool, error)
	Release(ctx context.Context, siteID uuid.UUID, category string, code string) error
}

type AlertStore interface {
	Insert(ctx context.Context, al models.Alert) (models.Alert, error)
	FindByID(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID) (models.Alert, error)
	FindPendingBySubject(ctx context.Context, siteID uuid.UUID, cedula string) ([]models.Alert, error)
	List(ctx context.Context, siteID uuid.UUID, includeResolved bool) ([]models.Alert, error)
	Resolve(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID, resolvedBy *uuid.UUID, notes string) (models.Alert, error)
	Delete(ctx context.Context, siteID uuid.UUID, alertID uuid.UUID) error
}

type ProfileStore interface {
	Find(ctx context.Context, siteID uuid.UUID, cedula string) (models.Profile, error)
}

type RestrictionStore interface {
	CheckBlocked(ctx context.Context, siteID uuid.UUID, cedula string) (bool, string, string, error)
}

type Publisher interface {
	Emit(ctx context.Context, ev models.OutboxEvent) error
}

type Deps struct {
	Admissions   AdmissionStore
	Badges       BadgeStore
	Alerts       AlertStore
	Profiles     ProfileStore
	Restrictions RestrictionStore
	Locks        lockx.Keyed
	Outbox       Publisher
	Logger       logx.Logger
	Thresholds   PermanenceThresholds
	Now          func() time.Time
}

// Service is the admission orchestrator. All entry and exit mutations run
// under per-subject and per-badge locks so the single-open-admission and
// single-holder invariants survive concurrent guard stations.
type Service struct {
	admissions   AdmissionStore
	badges       BadgeStore
	alerts       AlertStore
	profiles     ProfileStore
	restrictions RestrictionStore
	locks        lockx.Keyed
	outbox       Publisher
	logger       logx.Logger
	thresholds   PermanenceThresholds
	now          func() time.Time
}

func NewService(d Deps) *Service {
	if d.Locks == nil {
		d.Locks = lockx.NewLocalKeyed()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Thresholds.HardMaxMinutes == 0 {
		d.Thresholds = DefaultPermanenceThresholds()
	}
	return &Service{
		admissions:   d.Admissions,
		badges:       d.Badges,
		alerts:       d.Alerts,
		profiles:     d.Profiles,
		restrictions: d.Restrictions,
		locks:        d.Locks,
		outbox:       d.Outbox,
		logger:       d.Logger,
		thresholds:   d.Thresholds,
		now:          d.Now,
	}
}

func subjectLockKey(siteID uuid.UUID, cedula string) string {
	return "gate:subject:" + siteID.String() + ":" + cedula
}

func badgeLockKey(siteID uuid.UUID, category string, code string) string {
	return "gate:badge:" + siteID.String() + ":" + category + ":" + code
}

// ValidateEntry builds the validation context for a subject and returns the
// verdict without side effects.
func (s *Service) ValidateEntry(ctx context.Context, siteID uuid.UUID, cedula string, category AccessCategory, override bool) (Verdict, error) {
	if cedula == "" {
		return Verdict{}, ErrInvalidInput
	}
	ec, _, err := s.buildContext(ctx, siteID, cedula, category, override)
	if err != nil {
		return Verdict{}, err
	}
	return Evaluate(ec), nil
}

func (s *Service) buildContext(ctx context.Context, siteID uuid.UUID, cedula string, category AccessCategory, override bool) (EvalContext, models.Profile, error) {
	ec := EvalContext{
		Cedula:        cedula,
		Category:      category,
		Authorization: AuthUndetermined,
		Override:      override,
	}

	blocked, severity, reason, err := s.restrictions.CheckBlocked(ctx, siteID, cedula)
	if err != nil {
		return EvalContext{}, models.Profile{}, err
	}
	if blocked {
		ec.Blacklist = &BlacklistMatch{Severity: severity, Reason: reason}
	}

	if _, err := s.admissions.FindOpenBySubject(ctx, siteID, cedula); err == nil {
		ec.OpenAdmission = true
	} else if !errors.Is(err, ErrAdmissionNotFound) {
		return EvalContext{}, models.Profile{}, err
	}

	var profile models.Profile
	if p, err := s.profiles.Find(ctx, siteID, cedula); err == nil {
		profile = p
		ec.FullName = p.FullName
		ec.Authorization = ComputeAuthorization(p.DocStatus, p.DocExpiresOn, s.now())
	} else if !errors.Is(err, ErrSubjectNotFound) {
		return EvalContext{}, models.Profile{}, err
	}

	pending, err := s.alerts.FindPendingBySubject(ctx, siteID, cedula)
	if err != nil {
		return EvalContext{}, models.Profile{}, err
	}
	if len(pending) > 0 {
		ec.PendingAlert = pending[0].Reason
	}

	return ec, profile, nil
}

type AdmitInput struct {
	Cedula      string
	FullName    string
	Category    AccessCategory
	BadgeCode   string
	Destination string
	Carrier     string
	Reason      string
	Override    bool
}

// Admit validates and, when allowed, opens an admission record and reserves
// the requested badge. A denial carries no side effects. When the badge
// reservation fails after the record was written, the record is rolled back;
// an open admission must never claim a badge it does not hold.
func (s *Service) Admit(ctx context.Context, siteID uuid.UUID, in AdmitInput, guardID *uuid.UUID) (models.AdmissionRecord, Verdict, error) {
	if in.Cedula == "" || in.Category == "" {
		return models.AdmissionRecord{}, Verdict{}, ErrInvalidInput
	}
	badgeCode := NormalizeBadgeCode(in.BadgeCode)

	release, err := s.locks.Acquire(ctx, subjectLockKey(siteID, in.Cedula))
	if err != nil {
		return models.AdmissionRecord{}, Verdict{}, err
	}
	defer release(ctx)

	ec, profile, err := s.buildContext(ctx, siteID, in.Cedula, in.Category, in.Override)
	if err != nil {
		return models.AdmissionRecord{}, Verdict{}, err
	}
	verdict := Evaluate(ec)
	if !verdict.Allowed() {
		metricsx.IncAdmissionDecision("denied", string(verdict.Reason))
		return models.AdmissionRecord{}, verdict, nil
	}

	badgeCategory := BadgeCategoryFor(in.Category)
	if HasBadge(badgeCode) {
		releaseBadge, err := s.locks.Acquire(ctx, badgeLockKey(siteID, badgeCategory, badgeCode))
		if err != nil {
			return models.AdmissionRecord{}, Verdict{}, err
		}
		defer releaseBadge(ctx)

		available, err := s.badges.IsAvailable(ctx, siteID, badgeCategory, badgeCode)
		if err != nil {
			return models.AdmissionRecord{}, Verdict{}, err
		}
		if !available {
			metricsx.IncBadgeConflict()
			return models.AdmissionRecord{}, Verdict{}, ErrBadgeUnavailable
		}
	}

	fullName := in.FullName
	if profile.FullName != "" {
		fullName = profile.FullName
	}
	rec := models.AdmissionRecord{
		SiteID:      siteID,
		Cedula:      in.Cedula,
		FullName:    fullName,
		Category:    string(in.Category),
		BadgeCode:   badgeCode,
		Destination: in.Destination,
		Carrier:     in.Carrier,
		Reason:      in.Reason,
		EnteredAt:   s.now().UTC(),
		EnteredBy:   guardID,
		Overridden:  in.Override,
	}
	inserted, err := s.admissions.Insert(ctx, rec)
	if err != nil {
		return models.AdmissionRecord{}, Verdict{}, err
	}

	if HasBadge(badgeCode) {
		reserved, err := s.badges.Reserve(ctx, siteID, badgeCategory, badgeCode)
		if err == nil && !reserved {
			metricsx.IncBadgeConflict()
			err = ErrBadgeUnavailable
		}
		if err != nil {
			if delErr := s.admissions.Delete(ctx, siteID, inserted.AdmissionID); delErr != nil {
				s.logger.Error(ctx, "admission_rollback_failed", "failed to roll back admission after badge reserve failure",
					slog.String("admission_id", inserted.AdmissionID.String()),
					slog.String("error", delErr.Error()),
				)
			}
			return models.AdmissionRecord{}, Verdict{}, err
		}
	}

	s.emit(ctx, siteID, events.AggregateTypeAdmission, inserted.AdmissionID, events.TopicAdmissionEvents, events.EventAdmissionOpened, map[string]any{
		"admission_id": inserted.AdmissionID,
		"cedula":       inserted.Cedula,
		"category":     inserted.Category,
		"badge_code":   inserted.BadgeCode,
		"entered_at":   inserted.EnteredAt,
	})
	metricsx.IncAdmissionDecision(string(verdict.Status), string(verdict.Reason))
	s.logger.Info(ctx, "admission_opened", "admission opened",
		slog.String("admission_id", inserted.AdmissionID.String()),
		slog.String("category", inserted.Category),
		slog.String("badge_code", inserted.BadgeCode),
	)
	return inserted, verdict, nil
}

type ExitInput struct {
	AdmissionID       uuid.UUID
	ReturnedBadgeCode string
	Observations      string
}

type ExitResult struct {
	Record     models.AdmissionRecord
	Permanence PermanenceReport
	Alert      *models.Alert
}

// RegisterExit closes an admission exactly once. The badge is released only
// when the returned code normalizes to the code assigned at entry; otherwise
// the badge stays held and a custody alert is opened. Overstay never blocks
// an exit.
func (s *Service) RegisterExit(ctx context.Context, siteID uuid.UUID, in ExitInput, guardID *uuid.UUID) (ExitResult, error) {
	if in.AdmissionID == uuid.Nil {
		return ExitResult{}, ErrInvalidInput
	}

	rec, err := s.admissions.FindByID(ctx, siteID, in.AdmissionID)
	if err != nil {
		return ExitResult{}, err
	}
	if !rec.Open() {
		return ExitResult{}, ErrAdmissionClosed
	}

	release, err := s.locks.Acquire(ctx, subjectLockKey(siteID, rec.Cedula))
	if err != nil {
		return ExitResult{}, err
	}
	defer release(ctx)

	exitedAt := s.now().UTC()
	if exitedAt.Before(rec.EnteredAt) {
		return ExitResult{}, ErrExitBeforeEntry
	}

	closed, err := s.admissions.Close(ctx, siteID, in.AdmissionID, exitedAt, guardID, in.Observations)
	if err != nil {
		return ExitResult{}, err
	}

	result := ExitResult{
		Record:     closed,
		Permanence: s.thresholds.ClassifySince(closed.EnteredAt, exitedAt),
	}

	assigned := NormalizeBadgeCode(closed.BadgeCode)
	if HasBadge(assigned) {
		category := BadgeCategoryFor(AccessCategory(closed.Category))
		returned := NormalizeBadgeCode(in.ReturnedBadgeCode)
		if returned == assigned {
			releaseBadge, err := s.locks.Acquire(ctx, badgeLockKey(siteID, category, assigned))
			if err != nil {
				return ExitResult{}, err
			}
			defer releaseBadge(ctx)
			if err := s.badges.Release(ctx, siteID, category, assigned); err != nil {
				return ExitResult{}, err
			}
		} else {
			reason := "badge not returned at exit"
			if HasBadge(returned) {
				reason = "badge mismatch at exit: assigned " + assigned + ", returned " + returned
			}
			alert, err := s.alerts.Insert(ctx, models.Alert{
				SiteID:        siteID,
				Cedula:        closed.Cedula,
				FullName:      closed.FullName,
				BadgeCode:     assigned,
				AdmissionKind: closed.Category,
				AdmissionID:   closed.AdmissionID,
				Reason:        reason,
				ReportedBy:    guardID,
				OpenedAt:      exitedAt,
				Notes:         in.Observations,
			})
			if err != nil {
				return ExitResult{}, err
			}
			result.Alert = &alert
			s.emit(ctx, siteID, events.AggregateTypeAlert, alert.AlertID, events.TopicGateAlerts, events.EventAlertRaised, map[string]any{
				"alert_id":   alert.AlertID,
				"cedula":     alert.Cedula,
				"badge_code": alert.BadgeCode,
				"reason":     alert.Reason,
			})
			s.logger.Warn(ctx, "custody_alert_opened", "badge custody alert opened",
				slog.String("alert_id", alert.AlertID.String()),
				slog.String("badge_code", alert.BadgeCode),
			)
		}
	}

	s.emit(ctx, siteID, events.AggregateTypeAdmission, closed.AdmissionID, events.TopicAdmissionEvents, events.EventAdmissionClosed, map[string]any{
		"admission_id": closed.AdmissionID,
		"cedula":       closed.Cedula,
		"exited_at":    exitedAt,
		"permanence":   string(result.Permanence.State),
	})
	return result, nil
}

type OpenAdmission struct {
	Record     models.AdmissionRecord
	Permanence PermanenceReport
}

func (s *Service) ListOpenAdmissions(ctx context.Context, siteID uuid.UUID) ([]OpenAdmission, error) {
	records, err := s.admissions.ListOpen(ctx, siteID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := make([]OpenAdmission, 0, len(records))
	for _, rec := range records {
		out = append(out, OpenAdmission{
			Record:     rec,
			Permanence: s.thresholds.ClassifySince(rec.EnteredAt, now),
		})
	}
	return out, nil
}

type OverstayAlert struct {
	Record     models.AdmissionRecord
	Permanence PermanenceReport
}

// CheckOverstays returns the open admissions at or past the early-warning
// threshold.
func (s *Service) CheckOverstays(ctx context.Context, siteID uuid.UUID) ([]OverstayAlert, error) {
	open, err := s.ListOpenAdmissions(ctx, siteID)
	if err != nil {
		return nil, err
	}
	var out []OverstayAlert
	for _, oa := range open {
		if oa.Permanence.State != PermanenceNormal {
			out = append(out, OverstayAlert{Record: oa.Record, Permanence: oa.Permanence})
		}
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, siteID uuid.UUID, aggregateType string, aggregateID uuid.UUID, topic string, eventType string, payload map[string]any) {
	if s.outbox == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	envelope := events.Envelope{
		EventID:       uuid.New(),
		SiteID:        siteID,
		OccurredAt:    s.now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}
	wire, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	ev := models.OutboxEvent{
		EventID:       envelope.EventID,
		SiteID:        siteID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID.String(),
		Topic:         topic,
		Payload:       wire,
	}
	if err := s.outbox.Emit(ctx, ev); err != nil {
		s.logger.Warn(ctx, "outbox_emit_failed", "failed to enqueue event",
			slog.String("topic", topic),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
