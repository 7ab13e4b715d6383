package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	SiteID        uuid.UUID       `json:"site_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

const (
	TopicAdmissionEvents  = "admission.events"
	TopicBadgeEvents      = "badge.events"
	TopicGateAlerts       = "gate.alerts"
	TopicOverstayNotices  = "overstay.notices"
	TopicOccupancyMetrics = "occupancy.metrics"
	TopicCheckpointEvents = "checkpoint.events"
)

const (
	AggregateTypeAdmission = "admission"
	AggregateTypeBadge     = "badge"
	AggregateTypeAlert     = "alert"
)

const (
	EventAdmissionOpened  = "admission_opened"
	EventAdmissionClosed  = "admission_closed"
	EventAlertRaised      = "alert_raised"
	EventAlertResolved    = "alert_resolved"
	EventBadgeProvisioned = "badge_provisioned"
	EventBadgeCondition   = "badge_condition_changed"
	EventOverstayNotice   = "overstay_notice"
)
