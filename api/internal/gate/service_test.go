package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"gatehouse/api/internal/models"
	"gatehouse/shared/logx"
)

type memAdmissions struct {
	mu   sync.Mutex
	recs map[uuid.UUID]models.AdmissionRecord
}

func newMemAdmissions() *memAdmissions {
	return &memAdmissions{recs: map[uuid.UUID]models.AdmissionRecord{}}
}

func (m *memAdmissions) Insert(_ context.Context, rec models.AdmissionRecord) (models.AdmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.recs {
		if existing.Cedula == rec.Cedula && existing.ExitedAt == nil {
			return models.AdmissionRecord{}, ErrSubjectInside
		}
	}
	if rec.AdmissionID == uuid.Nil {
		rec.AdmissionID = uuid.New()
	}
	m.recs[rec.AdmissionID] = rec
	return rec, nil
}

func (m *memAdmissions) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (models.AdmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return models.AdmissionRecord{}, ErrAdmissionNotFound
	}
	return rec, nil
}

func (m *memAdmissions) FindOpenBySubject(_ context.Context, _ uuid.UUID, cedula string) (models.AdmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.Cedula == cedula && rec.ExitedAt == nil {
			return rec, nil
		}
	}
	return models.AdmissionRecord{}, ErrAdmissionNotFound
}

func (m *memAdmissions) Close(_ context.Context, _ uuid.UUID, id uuid.UUID, exitedAt time.Time, exitedBy *uuid.UUID, observations string) (models.AdmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return models.AdmissionRecord{}, ErrAdmissionNotFound
	}
	if rec.ExitedAt != nil {
		return models.AdmissionRecord{}, ErrAdmissionClosed
	}
	rec.ExitedAt = &exitedAt
	rec.ExitedBy = exitedBy
	rec.Observations = observations
	m.recs[id] = rec
	return rec, nil
}

func (m *memAdmissions) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *memAdmissions) ListOpen(_ context.Context, _ uuid.UUID) ([]models.AdmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AdmissionRecord
	for _, rec := range m.recs {
		if rec.ExitedAt == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memBadges struct {
	mu          sync.Mutex
	m           map[string]*models.Badge
	failReserve bool
}

func newMemBadges() *memBadges {
	return &memBadges{m: map[string]*models.Badge{}}
}

func badgeKey(category, code string) string { return category + "/" + code }

func (m *memBadges) add(category, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[badgeKey(category, code)] = &models.Badge{Category: category, Code: code, Condition: models.BadgeConditionActive}
}

func (m *memBadges) inUse(category, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.m[badgeKey(category, code)]
	return ok && b.InUse
}

func (m *memBadges) IsAvailable(_ context.Context, _ uuid.UUID, category string, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.m[badgeKey(category, code)]
	if !ok {
		return false, ErrBadgeNotFound
	}
	return !b.InUse && b.Condition == models.BadgeConditionActive, nil
}

func (m *memBadges) Reserve(_ context.Context, _ uuid.UUID, category string, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReserve {
		return false, errors.New("storage failure")
	}
	b, ok := m.m[badgeKey(category, code)]
	if !ok || b.InUse || b.Condition != models.BadgeConditionActive {
		return false, nil
	}
	b.InUse = true
	return true, nil
}

func (m *memBadges) Release(_ context.Context, _ uuid.UUID, category string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.m[badgeKey(category, code)]; ok {
		b.InUse = false
	}
	return nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]models.Alert
}

func newMemAlerts() *memAlerts {
	return &memAlerts{alerts: map[uuid.UUID]models.Alert{}}
}

func (m *memAlerts) Insert(_ context.Context, al models.Alert) (models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if al.AlertID == uuid.Nil {
		al.AlertID = uuid.New()
	}
	m.alerts[al.AlertID] = al
	return al, nil
}

func (m *memAlerts) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	al, ok := m.alerts[id]
	if !ok {
		return models.Alert{}, ErrAlertNotFound
	}
	return al, nil
}

func (m *memAlerts) FindPendingBySubject(_ context.Context, _ uuid.UUID, cedula string) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Alert
	for _, al := range m.alerts {
		if al.Cedula == cedula && !al.Resolved {
			out = append(out, al)
		}
	}
	return out, nil
}

func (m *memAlerts) List(_ context.Context, _ uuid.UUID, includeResolved bool) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Alert
	for _, al := range m.alerts {
		if includeResolved || !al.Resolved {
			out = append(out, al)
		}
	}
	return out, nil
}

func (m *memAlerts) Resolve(_ context.Context, _ uuid.UUID, id uuid.UUID, resolvedBy *uuid.UUID, notes string) (models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	al, ok := m.alerts[id]
	if !ok {
		return models.Alert{}, ErrAlertNotFound
	}
	if al.Resolved {
		return models.Alert{}, ErrAlertAlreadyResolved
	}
	now := time.Now().UTC()
	al.Resolved = true
	al.ResolvedAt = &now
	al.ResolvedBy = resolvedBy
	al.ResolveNotes = notes
	m.alerts[id] = al
	return al, nil
}

func (m *memAlerts) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[id]; !ok {
		return ErrAlertNotFound
	}
	delete(m.alerts, id)
	return nil
}

type memProfiles struct {
	profiles map[string]models.Profile
}

func (m *memProfiles) Find(_ context.Context, _ uuid.UUID, cedula string) (models.Profile, error) {
	p, ok := m.profiles[cedula]
	if !ok {
		return models.Profile{}, ErrSubjectNotFound
	}
	return p, nil
}

type memRestrictions struct {
	blocked map[string][2]string
}

func (m *memRestrictions) CheckBlocked(_ context.Context, _ uuid.UUID, cedula string) (bool, string, string, error) {
	if entry, ok := m.blocked[cedula]; ok {
		return true, entry[0], entry[1], nil
	}
	return false, "", "", nil
}

type testEnv struct {
	svc          *Service
	admissions   *memAdmissions
	badges       *memBadges
	alerts       *memAlerts
	profiles     *memProfiles
	restrictions *memRestrictions
	now          *time.Time
	siteID       uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	env := &testEnv{
		admissions:   newMemAdmissions(),
		badges:       newMemBadges(),
		alerts:       newMemAlerts(),
		profiles:     &memProfiles{profiles: map[string]models.Profile{}},
		restrictions: &memRestrictions{blocked: map[string][2]string{}},
		now:          &now,
		siteID:       uuid.New(),
	}
	env.svc = NewService(Deps{
		Admissions:   env.admissions,
		Badges:       env.badges,
		Alerts:       env.alerts,
		Profiles:     env.profiles,
		Restrictions: env.restrictions,
		Logger:       logx.New("gate-test", "test", "", "error"),
		Now:          func() time.Time { return *env.now },
	})
	return env
}

func (env *testEnv) activeProfile(cedula, name string) {
	expiry := env.now.AddDate(1, 0, 0)
	env.profiles.profiles[cedula] = models.Profile{
		Cedula: cedula, FullName: name, Category: "contractor",
		DocStatus: "active", DocExpiresOn: &expiry,
	}
}

func TestAdmitHappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, verdict, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7", Destination: "warehouse",
	}, nil)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if verdict.Status != VerdictAllowed {
		t.Fatalf("verdict = %s/%s", verdict.Status, verdict.Reason)
	}
	if rec.BadgeCode != "7" || rec.ExitedAt != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.FullName != "Ana Diaz" {
		t.Fatalf("name should be snapshotted from the profile, got %q", rec.FullName)
	}
	if !env.badges.inUse("contractor", "7") {
		t.Fatal("badge 7 should be reserved")
	}
}

func TestAdmitSecondEntryDenied(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")
	env.badges.add("contractor", "8")

	if _, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	_, verdict, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "8",
	}, nil)
	if err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if verdict.Status != VerdictDenied || verdict.Reason != ReasonAlreadyInside {
		t.Fatalf("verdict = %s/%s", verdict.Status, verdict.Reason)
	}
	if env.badges.inUse("contractor", "8") {
		t.Fatal("denied entry must not reserve a badge")
	}
	open, _ := env.admissions.ListOpen(context.Background(), env.siteID)
	if len(open) != 1 {
		t.Fatalf("open admissions = %d, want 1", len(open))
	}
}

func TestExitWithoutReturningBadge(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	*env.now = env.now.Add(2 * time.Hour)
	result, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: "",
	}, nil)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if result.Record.ExitedAt == nil {
		t.Fatal("record should be closed")
	}
	if !env.badges.inUse("contractor", "7") {
		t.Fatal("unreturned badge must stay reserved")
	}
	if result.Alert == nil || result.Alert.Resolved {
		t.Fatalf("expected an open custody alert, got %+v", result.Alert)
	}
	if result.Alert.BadgeCode != "7" || result.Alert.AdmissionID != rec.AdmissionID {
		t.Fatalf("alert should reference badge and admission: %+v", result.Alert)
	}
}

func TestResolveAlertReleasesBadge(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.activeProfile("9-333-444", "Luis Mora")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(time.Hour)
	result, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{AdmissionID: rec.AdmissionID}, nil)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}

	resolved, err := env.svc.ResolveAlert(context.Background(), env.siteID, result.Alert.AlertID, nil, "badge recovered")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved {
		t.Fatal("alert should be resolved")
	}
	if env.badges.inUse("contractor", "7") {
		t.Fatal("resolution must release the badge")
	}

	// The badge is back in circulation for a fresh admission.
	if _, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "9-333-444", Category: CategoryContractor, BadgeCode: "7",
	}, nil); err != nil {
		t.Fatalf("re-admit with released badge: %v", err)
	}
}

func TestResolveAlertTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(time.Hour)
	result, _ := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{AdmissionID: rec.AdmissionID}, nil)

	if _, err := env.svc.ResolveAlert(context.Background(), env.siteID, result.Alert.AlertID, nil, ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := env.svc.ResolveAlert(context.Background(), env.siteID, result.Alert.AlertID, nil, ""); !errors.Is(err, ErrAlertAlreadyResolved) {
		t.Fatalf("second resolve should conflict, got %v", err)
	}
}

func TestValidateEntryExpiredContractor(t *testing.T) {
	env := newTestEnv(t)
	yesterday := env.now.AddDate(0, 0, -1)
	env.profiles.profiles["8-111-222"] = models.Profile{
		Cedula: "8-111-222", FullName: "Ana Diaz", Category: "contractor",
		DocStatus: "active", DocExpiresOn: &yesterday,
	}

	verdict, err := env.svc.ValidateEntry(context.Background(), env.siteID, "8-111-222", CategoryContractor, false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if verdict.Status != VerdictDenied || verdict.Reason != ReasonExpiredDocuments {
		t.Fatalf("stored status must not mask a lapsed expiry, got %s/%s", verdict.Status, verdict.Reason)
	}
}

func TestAdmitBadgeUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.activeProfile("9-333-444", "Luis Mora")
	env.badges.add("contractor", "7")

	if _, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	_, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "9-333-444", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	if !errors.Is(err, ErrBadgeUnavailable) {
		t.Fatalf("expected ErrBadgeUnavailable, got %v", err)
	}
	if _, err := env.admissions.FindOpenBySubject(context.Background(), env.siteID, "9-333-444"); !errors.Is(err, ErrAdmissionNotFound) {
		t.Fatal("no record should exist for the refused subject")
	}
}

func TestAdmitUnknownBadge(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")

	_, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "99",
	}, nil)
	if !errors.Is(err, ErrBadgeNotFound) {
		t.Fatalf("expected ErrBadgeNotFound, got %v", err)
	}
}

func TestAdmitRollbackOnReserveFailure(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")
	env.badges.failReserve = true

	_, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	if err == nil {
		t.Fatal("admit should fail when the reserve fails")
	}
	if _, err := env.admissions.FindOpenBySubject(context.Background(), env.siteID, "8-111-222"); !errors.Is(err, ErrAdmissionNotFound) {
		t.Fatal("record must be rolled back after a reserve failure")
	}
}

func TestAdmitWithoutBadge(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")

	rec, verdict, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "0",
	}, nil)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if verdict.Status != VerdictAllowed {
		t.Fatalf("verdict = %s/%s", verdict.Status, verdict.Reason)
	}
	if rec.BadgeCode != BadgeSentinel {
		t.Fatalf("badge code = %q, want sentinel", rec.BadgeCode)
	}

	*env.now = env.now.Add(time.Hour)
	result, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{AdmissionID: rec.AdmissionID}, nil)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if result.Alert != nil {
		t.Fatal("a badge-less admission must never raise a custody alert")
	}
}

func TestAdmitUnknownProfilePasses(t *testing.T) {
	env := newTestEnv(t)
	env.badges.add("visitor", "3")

	rec, verdict, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "1-000-000", FullName: "Pedro Lara", Category: CategoryVisitor, BadgeCode: "3",
	}, nil)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if verdict.Status != VerdictAllowed {
		t.Fatalf("an unknown subject is undetermined and passable, got %s/%s", verdict.Status, verdict.Reason)
	}
	if rec.FullName != "Pedro Lara" {
		t.Fatalf("name should fall back to the input, got %q", rec.FullName)
	}
}

func TestAdmitWarnsOnPendingAlert(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "9")
	if _, err := env.alerts.Insert(context.Background(), models.Alert{
		SiteID: env.siteID, Cedula: "8-111-222", BadgeCode: "7", AdmissionKind: "contractor",
		AdmissionID: uuid.New(), Reason: "badge not returned at exit",
	}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	rec, verdict, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "9",
	}, nil)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if verdict.Status != VerdictWarning || verdict.Reason != ReasonBadgeAlert {
		t.Fatalf("verdict = %s/%s", verdict.Status, verdict.Reason)
	}
	if rec.AdmissionID == uuid.Nil {
		t.Fatal("warning must not block the admission")
	}
}

func TestExitBadgeMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(time.Hour)
	result, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: "9",
	}, nil)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if result.Alert == nil {
		t.Fatal("mismatched return must raise an alert")
	}
	if !env.badges.inUse("contractor", "7") {
		t.Fatal("mismatched return must not release the assigned badge")
	}
}

func TestExitNormalizesReturnedBadge(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(time.Hour)
	result, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: " 007 ",
	}, nil)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if result.Alert != nil {
		t.Fatal("a code differing only in formatting is a clean return")
	}
	if env.badges.inUse("contractor", "7") {
		t.Fatal("badge should be released")
	}
}

func TestExitTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(time.Hour)
	if _, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: "7",
	}, nil); err != nil {
		t.Fatalf("first exit: %v", err)
	}
	if _, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: "7",
	}, nil); !errors.Is(err, ErrAdmissionClosed) {
		t.Fatalf("second exit should conflict, got %v", err)
	}
}

func TestExitBeforeEntryRejected(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(-time.Hour)
	if _, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: "7",
	}, nil); !errors.Is(err, ErrExitBeforeEntry) {
		t.Fatalf("expected ErrExitBeforeEntry, got %v", err)
	}
}

func TestOverstayNeverBlocksExit(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.badges.add("contractor", "7")

	rec, _, _ := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil)
	*env.now = env.now.Add(900 * time.Minute)
	result, err := env.svc.RegisterExit(context.Background(), env.siteID, ExitInput{
		AdmissionID: rec.AdmissionID, ReturnedBadgeCode: "7",
	}, nil)
	if err != nil {
		t.Fatalf("overstayed subject must still be able to exit: %v", err)
	}
	if result.Permanence.State != PermanenceExceeded {
		t.Fatalf("permanence = %s, want %s", result.Permanence.State, PermanenceExceeded)
	}
}

func TestCheckOverstays(t *testing.T) {
	env := newTestEnv(t)
	env.activeProfile("8-111-222", "Ana Diaz")
	env.activeProfile("9-333-444", "Luis Mora")
	env.badges.add("contractor", "7")
	env.badges.add("contractor", "8")

	if _, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "8-111-222", Category: CategoryContractor, BadgeCode: "7",
	}, nil); err != nil {
		t.Fatalf("admit: %v", err)
	}
	*env.now = env.now.Add(820 * time.Minute)
	if _, _, err := env.svc.Admit(context.Background(), env.siteID, AdmitInput{
		Cedula: "9-333-444", Category: CategoryContractor, BadgeCode: "8",
	}, nil); err != nil {
		t.Fatalf("admit: %v", err)
	}

	overstays, err := env.svc.CheckOverstays(context.Background(), env.siteID)
	if err != nil {
		t.Fatalf("check overstays: %v", err)
	}
	if len(overstays) != 1 {
		t.Fatalf("overstays = %d, want 1", len(overstays))
	}
	if overstays[0].Record.Cedula != "8-111-222" {
		t.Fatalf("wrong overstay subject: %s", overstays[0].Record.Cedula)
	}
	if overstays[0].Permanence.State != PermanenceEarlyAlert {
		t.Fatalf("permanence = %s", overstays[0].Permanence.State)
	}
}
