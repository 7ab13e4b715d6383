package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse/api/internal/gate"
	"gatehouse/api/internal/models"
	"gatehouse/api/internal/repos"
	"gatehouse/shared/authx"
	"gatehouse/shared/cachex"
	"gatehouse/shared/clients/registry"
	"gatehouse/shared/events"
	"gatehouse/shared/httpx"
	"gatehouse/shared/logx"
	"gatehouse/shared/sitex"
)

type Handlers struct {
	Gate         *gate.Service
	Badges       *repos.BadgesRepo
	Restrictions *repos.RestrictionsRepo
	Profiles     *repos.ProfilesRepo
	Users        *repos.UsersRepo
	Registry     *registry.Client
	Cache        *cachex.Client
	Outbox       gate.Publisher
	Logger       logx.Logger
}

// openListTTL bounds staleness of the cached monitoring list. Entries and
// exits are visible within this window without invalidation traffic.
const openListTTL = 5 * time.Second

func (h Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/admissions/validate", h.validateEntry)
	mux.HandleFunc("POST /api/v1/admissions", h.admit)
	mux.HandleFunc("POST /api/v1/admissions/{id}/exit", h.exit)
	mux.HandleFunc("GET /api/v1/admissions/open", h.listOpen)
	mux.HandleFunc("GET /api/v1/admissions/overstays", h.overstays)

	mux.HandleFunc("GET /api/v1/alerts", h.listAlerts)
	mux.HandleFunc("POST /api/v1/alerts/{id}/resolve", h.resolveAlert)
	mux.HandleFunc("DELETE /api/v1/alerts/{id}", h.deleteAlert)

	mux.HandleFunc("GET /api/v1/badges", h.listBadges)
	mux.HandleFunc("POST /api/v1/badges", h.createBadge)
	mux.HandleFunc("POST /api/v1/badges/range", h.createBadgeRange)
	mux.HandleFunc("PATCH /api/v1/badges/{category}/{code}/condition", h.setBadgeCondition)

	mux.HandleFunc("GET /api/v1/restrictions", h.listRestrictions)
	mux.HandleFunc("POST /api/v1/restrictions", h.addRestriction)
	mux.HandleFunc("DELETE /api/v1/restrictions/{cedula}", h.removeRestriction)

	mux.HandleFunc("PUT /api/v1/profiles/{cedula}", h.upsertProfile)
	mux.HandleFunc("GET /api/v1/profiles/{cedula}", h.getProfile)
	mux.HandleFunc("POST /api/v1/profiles/{cedula}/refresh-documents", h.refreshDocuments)
}

func (h Handlers) siteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := sitex.SiteIDFromContext(r.Context())
	if raw == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing site context", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid site id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// guardID resolves the authenticated guard to a user row, creating it on
// first sight. A missing auth context is allowed; the admission is then
// recorded without an acting user.
func (h Handlers) guardID(r *http.Request, siteID uuid.UUID) *uuid.UUID {
	auth, ok := authx.FromContext(r.Context())
	if !ok || auth.Subject == "" || h.Users == nil {
		return nil
	}
	role := ""
	if len(auth.Roles) > 0 {
		role = auth.Roles[0]
	}
	user, err := h.Users.UpsertUserFromOIDC(r.Context(), siteID, auth.Subject, auth.Email, auth.Name, role)
	if err != nil {
		return nil
	}
	return &user.UserID
}

func writeGateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case gate.NotFound(err):
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case gate.Conflict(err):
		httpx.WriteError(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case gate.Invalid(err):
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	default:
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "operation failed", nil)
	}
}

func verdictPayload(v gate.Verdict) map[string]any {
	return map[string]any{
		"status":  v.Status,
		"reason":  v.Reason,
		"message": v.Message,
	}
}

type validateRequest struct {
	Cedula   string `json:"cedula"`
	Category string `json:"category"`
	Override bool   `json:"override"`
}

func (h Handlers) validateEntry(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	category, ok := gate.ParseAccessCategory(req.Category)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown access category", nil)
		return
	}
	verdict, err := h.Gate.ValidateEntry(r.Context(), siteID, strings.TrimSpace(req.Cedula), category, req.Override)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verdictPayload(verdict))
}

type admitRequest struct {
	Cedula      string `json:"cedula"`
	FullName    string `json:"full_name"`
	Category    string `json:"category"`
	BadgeCode   string `json:"badge_code"`
	Destination string `json:"destination"`
	Carrier     string `json:"carrier"`
	Reason      string `json:"reason"`
	Override    bool   `json:"override"`
}

func (h Handlers) admit(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	category, ok := gate.ParseAccessCategory(req.Category)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown access category", nil)
		return
	}
	rec, verdict, err := h.Gate.Admit(r.Context(), siteID, gate.AdmitInput{
		Cedula:      strings.TrimSpace(req.Cedula),
		FullName:    strings.TrimSpace(req.FullName),
		Category:    category,
		BadgeCode:   req.BadgeCode,
		Destination: req.Destination,
		Carrier:     req.Carrier,
		Reason:      req.Reason,
		Override:    req.Override,
	}, h.guardID(r, siteID))
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	if !verdict.Allowed() {
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{"verdict": verdictPayload(verdict)})
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"verdict":   verdictPayload(verdict),
		"admission": rec,
	})
}

type exitRequest struct {
	ReturnedBadgeCode string `json:"returned_badge_code"`
	Observations      string `json:"observations"`
}

func (h Handlers) exit(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	admissionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid admission id", nil)
		return
	}
	var req exitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	result, err := h.Gate.RegisterExit(r.Context(), siteID, gate.ExitInput{
		AdmissionID:       admissionID,
		ReturnedBadgeCode: req.ReturnedBadgeCode,
		Observations:      req.Observations,
	}, h.guardID(r, siteID))
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	payload := map[string]any{
		"admission": result.Record,
		"permanence": map[string]any{
			"state":             result.Permanence.State,
			"elapsed_minutes":   result.Permanence.ElapsedMinutes,
			"remaining_minutes": result.Permanence.RemainingMinutes,
			"message":           result.Permanence.Message,
		},
	}
	if result.Alert != nil {
		payload["alert"] = result.Alert
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h Handlers) listOpen(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	cacheKey := "gate:open:" + siteID.String()
	if h.Cache != nil {
		var cached map[string]any
		if hit, err := h.Cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && hit {
			httpx.WriteJSON(w, http.StatusOK, cached)
			return
		}
	}
	open, err := h.Gate.ListOpenAdmissions(r.Context(), siteID)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(open))
	for _, oa := range open {
		items = append(items, map[string]any{
			"admission":         oa.Record,
			"permanence_state":  oa.Permanence.State,
			"elapsed_minutes":   oa.Permanence.ElapsedMinutes,
			"remaining_minutes": oa.Permanence.RemainingMinutes,
		})
	}
	body := map[string]any{"admissions": items}
	if h.Cache != nil {
		_ = h.Cache.SetJSON(r.Context(), cacheKey, body, openListTTL)
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (h Handlers) overstays(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	overstays, err := h.Gate.CheckOverstays(r.Context(), siteID)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(overstays))
	for _, oa := range overstays {
		items = append(items, map[string]any{
			"admission":         oa.Record,
			"permanence_state":  oa.Permanence.State,
			"remaining_minutes": oa.Permanence.RemainingMinutes,
			"message":           oa.Permanence.Message,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"overstays": items})
}

func (h Handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	includeResolved := r.URL.Query().Get("include_resolved") == "true"
	alerts, err := h.Gate.ListAlerts(r.Context(), siteID, includeResolved)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

type resolveAlertRequest struct {
	Notes string `json:"notes"`
}

func (h Handlers) resolveAlert(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	alertID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid alert id", nil)
		return
	}
	var req resolveAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	alert, err := h.Gate.ResolveAlert(r.Context(), siteID, alertID, h.guardID(r, siteID), req.Notes)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alert": alert})
}

func (h Handlers) deleteAlert(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	alertID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid alert id", nil)
		return
	}
	if err := h.Gate.DeleteAlert(r.Context(), siteID, alertID); err != nil {
		writeGateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h Handlers) listBadges(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "category is required", nil)
		return
	}
	onlyInUse := r.URL.Query().Get("in_use") == "true"
	badges, err := h.Badges.List(r.Context(), siteID, category, onlyInUse)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list badges", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"badges": badges})
}

type createBadgeRequest struct {
	Category string `json:"category"`
	Code     string `json:"code"`
}

func (h Handlers) createBadge(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	var req createBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	code := gate.NormalizeBadgeCode(req.Code)
	if !gate.HasBadge(code) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "badge code is required", nil)
		return
	}
	badge, created, err := h.Badges.Create(r.Context(), siteID, strings.TrimSpace(req.Category), code)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create badge", nil)
		return
	}
	if created {
		h.emitBadgeEvent(r, siteID, badge, events.EventBadgeProvisioned)
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{"badge": badge})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"badge": badge, "existing": true})
}

type createBadgeRangeRequest struct {
	Category string `json:"category"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

func (h Handlers) createBadgeRange(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	var req createBadgeRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	if req.Start <= 0 || req.End < req.Start {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "range bounds must be positive and ordered", nil)
		return
	}
	if req.End-req.Start >= 10000 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "range too large", nil)
		return
	}
	codes := make([]string, 0, req.End-req.Start+1)
	for n := req.Start; n <= req.End; n++ {
		codes = append(codes, strconv.Itoa(n))
	}
	created, err := h.Badges.CreateRange(r.Context(), siteID, strings.TrimSpace(req.Category), codes)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create badge range", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"created": created, "requested": len(codes)})
}

type badgeConditionRequest struct {
	Condition string `json:"condition"`
}

func (h Handlers) setBadgeCondition(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	var req badgeConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	condition := strings.ToLower(strings.TrimSpace(req.Condition))
	switch condition {
	case models.BadgeConditionActive, models.BadgeConditionDamaged, models.BadgeConditionLost:
	default:
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown badge condition", nil)
		return
	}
	badge, err := h.Badges.SetCondition(r.Context(), siteID, r.PathValue("category"), gate.NormalizeBadgeCode(r.PathValue("code")), condition)
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	h.emitBadgeEvent(r, siteID, badge, events.EventBadgeCondition)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"badge": badge})
}

func (h Handlers) listRestrictions(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	entries, err := h.Restrictions.List(r.Context(), siteID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list restrictions", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"restrictions": entries})
}

type addRestrictionRequest struct {
	Cedula   string `json:"cedula"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

func (h Handlers) addRestriction(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	var req addRestrictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	cedula := strings.TrimSpace(req.Cedula)
	if cedula == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "cedula is required", nil)
		return
	}
	severity := strings.ToLower(strings.TrimSpace(req.Severity))
	switch severity {
	case "high", "medium", "low":
	default:
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "severity must be high, medium, or low", nil)
		return
	}
	entry, err := h.Restrictions.Add(r.Context(), siteID, cedula, severity, req.Reason, h.guardID(r, siteID))
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to add restriction", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"restriction": entry})
}

func (h Handlers) removeRestriction(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	cedula := strings.TrimSpace(r.PathValue("cedula"))
	if err := h.Restrictions.Deactivate(r.Context(), siteID, cedula); err != nil {
		if errors.Is(err, repos.ErrRestrictionNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "restriction not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to remove restriction", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"removed": true})
}

type upsertProfileRequest struct {
	FullName     string `json:"full_name"`
	Category     string `json:"category"`
	Company      string `json:"company"`
	DocStatus    string `json:"doc_status"`
	DocExpiresOn string `json:"doc_expires_on"`
}

func (h Handlers) upsertProfile(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	cedula := strings.TrimSpace(r.PathValue("cedula"))
	if cedula == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "cedula is required", nil)
		return
	}
	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	category, ok := gate.ParseAccessCategory(req.Category)
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown access category", nil)
		return
	}
	var expiresOn *time.Time
	if strings.TrimSpace(req.DocExpiresOn) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(req.DocExpiresOn))
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "doc_expires_on must be YYYY-MM-DD", nil)
			return
		}
		expiresOn = &parsed
	}
	var checkedAt *time.Time
	if req.DocStatus != "" || expiresOn != nil {
		now := time.Now().UTC()
		checkedAt = &now
	}
	profile, err := h.Profiles.Upsert(r.Context(), models.Profile{
		SiteID:       siteID,
		Cedula:       cedula,
		FullName:     strings.TrimSpace(req.FullName),
		Category:     string(category),
		Company:      strings.TrimSpace(req.Company),
		DocStatus:    strings.TrimSpace(req.DocStatus),
		DocExpiresOn: expiresOn,
		DocCheckedAt: checkedAt,
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to save profile", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (h Handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	profile, err := h.Profiles.Find(r.Context(), siteID, strings.TrimSpace(r.PathValue("cedula")))
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

// refreshDocuments pulls the subject's documentation standing from the
// external registry and stores it on the profile.
func (h Handlers) refreshDocuments(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteID(w, r)
	if !ok {
		return
	}
	if h.Registry == nil {
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "FAILED_PRECONDITION", "document registry not configured", nil)
		return
	}
	cedula := strings.TrimSpace(r.PathValue("cedula"))
	status, err := h.Registry.LookupDocuments(r.Context(), cedula)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadGateway, "UNAVAILABLE", "document registry lookup failed", nil)
		return
	}
	var expiresOn *time.Time
	if status.ExpiresOn != "" {
		parsed, err := time.Parse("2006-01-02", status.ExpiresOn)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadGateway, "UNAVAILABLE", "registry returned an invalid expiry date", nil)
			return
		}
		expiresOn = &parsed
	}
	profile, err := h.Profiles.UpdateDocumentStatus(r.Context(), siteID, cedula, status.Status, expiresOn, time.Now().UTC())
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (h Handlers) emitBadgeEvent(r *http.Request, siteID uuid.UUID, badge models.Badge, eventType string) {
	if h.Outbox == nil {
		return
	}
	body, err := json.Marshal(map[string]any{
		"badge_id":  badge.BadgeID,
		"category":  badge.Category,
		"code":      badge.Code,
		"condition": badge.Condition,
		"in_use":    badge.InUse,
	})
	if err != nil {
		return
	}
	envelope := events.Envelope{
		EventID:       uuid.New(),
		SiteID:        siteID,
		OccurredAt:    time.Now().UTC(),
		AggregateType: events.AggregateTypeBadge,
		AggregateID:   badge.BadgeID,
		EventType:     eventType,
		Payload:       body,
	}
	wire, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	_ = h.Outbox.Emit(r.Context(), models.OutboxEvent{
		EventID:       envelope.EventID,
		SiteID:        siteID,
		AggregateType: events.AggregateTypeBadge,
		AggregateID:   badge.BadgeID.String(),
		Topic:         events.TopicBadgeEvents,
		Payload:       wire,
	})
}
