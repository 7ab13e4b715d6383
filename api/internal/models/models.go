package models

import (
	"time"

	"github.com/google/uuid"
)

type Site struct {
	SiteID    uuid.UUID
	Slug      string
	Name      string
	CreatedAt time.Time
}

type User struct {
	UserID      uuid.UUID
	SiteID      uuid.UUID
	Subject     string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

const (
	BadgeConditionActive  = "active"
	BadgeConditionDamaged = "damaged"
	BadgeConditionLost    = "lost"
)

type Badge struct {
	BadgeID   uuid.UUID
	SiteID    uuid.UUID
	Category  string
	Code      string
	InUse     bool
	Condition string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AdmissionRecord struct {
	AdmissionID  uuid.UUID
	SiteID       uuid.UUID
	Cedula       string
	FullName     string
	Category     string
	BadgeCode    string
	Destination  string
	Carrier      string
	Reason       string
	EnteredAt    time.Time
	ExitedAt     *time.Time
	EnteredBy    *uuid.UUID
	ExitedBy     *uuid.UUID
	Observations string
	Overridden   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a AdmissionRecord) Open() bool {
	return a.ExitedAt == nil
}

type Alert struct {
	AlertID       uuid.UUID
	SiteID        uuid.UUID
	Cedula        string
	FullName      string
	BadgeCode     string
	AdmissionKind string
	AdmissionID   uuid.UUID
	Reason        string
	ReportedBy    *uuid.UUID
	Resolved      bool
	OpenedAt      time.Time
	ResolvedAt    *time.Time
	ResolvedBy    *uuid.UUID
	Notes         string
	ResolveNotes  string
}

type Profile struct {
	ProfileID     uuid.UUID
	SiteID        uuid.UUID
	Cedula        string
	FullName      string
	Category      string
	Company       string
	DocExpiresOn  *time.Time
	DocStatus     string
	DocCheckedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RestrictionEntry struct {
	RestrictionID uuid.UUID
	SiteID        uuid.UUID
	Cedula        string
	Severity      string
	Reason        string
	AddedBy       *uuid.UUID
	CreatedAt     time.Time
}

type AdmissionEvent struct {
	EventID     uuid.UUID
	SiteID      uuid.UUID
	AdmissionID uuid.UUID
	EventType   string
	OccurredAt  time.Time
	Payload     []byte
}

type AuditLog struct {
	AuditID      uuid.UUID
	OccurredAt   time.Time
	SiteID       uuid.UUID
	ActorUserID  *uuid.UUID
	Subject      string
	Action       string
	ResourceType *string
	ResourceID   *string
	RequestID    string
	Method       string
	Path         string
	StatusCode   int
	DurationMS   int64
	ClientIP     string
	UserAgent    string
	Details      []byte
}

type OutboxEvent struct {
	EventID       uuid.UUID
	SiteID        uuid.UUID
	AggregateType string
	AggregateID   string
	Topic         string
	Payload       []byte
	Status        string
	Attempts      int
	NextRetryAt   *time.Time
	LockedAt      *time.Time
	LockedBy      *string
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublishedAt   *time.Time
}
