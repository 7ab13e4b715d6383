package gate

import (
	"strings"
	"time"
)

type AccessCategory string

const (
	CategoryContractor AccessCategory = "contractor"
	CategorySupplier   AccessCategory = "supplier"
	CategoryVisitor    AccessCategory = "visitor"
	CategoryManual     AccessCategory = "manual"
)

func ParseAccessCategory(raw string) (AccessCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "contractor", "contratista":
		return CategoryContractor, true
	case "supplier", "proveedor":
		return CategorySupplier, true
	case "visitor", "visit", "visita":
		return CategoryVisitor, true
	case "manual", "other":
		return CategoryManual, true
	}
	return "", false
}

type AuthorizationStatus string

const (
	AuthActive       AuthorizationStatus = "active"
	AuthExpired      AuthorizationStatus = "expired"
	AuthInactive     AuthorizationStatus = "inactive"
	AuthSuspended    AuthorizationStatus = "suspended"
	AuthUndetermined AuthorizationStatus = "undetermined"
)

// ParseAuthorizationStatus maps upstream status strings into the closed set.
// Anything unrecognized becomes Undetermined, which passes validation rather
// than silently denying or silently counting as Active.
func ParseAuthorizationStatus(raw string) AuthorizationStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "activo", "vigente":
		return AuthActive
	case "expired", "vencido", "expirado":
		return AuthExpired
	case "inactive", "inactivo":
		return AuthInactive
	case "suspended", "suspendido":
		return AuthSuspended
	}
	return AuthUndetermined
}

// ComputeAuthorization derives the effective standing. A lapsed document
// expiry date forces Expired regardless of the stored status.
func ComputeAuthorization(raw string, docExpiresOn *time.Time, now time.Time) AuthorizationStatus {
	status := ParseAuthorizationStatus(raw)
	if docExpiresOn != nil {
		today := now.UTC().Truncate(24 * time.Hour)
		expiry := docExpiresOn.UTC().Truncate(24 * time.Hour)
		if expiry.Before(today) {
			return AuthExpired
		}
	}
	return status
}
