package audit

import (
	"time"

	id "garrison/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing per category.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Examples: account creation, account completion.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: failed verifications, cooldown rejections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility.
	// Examples: code issuance, session issuance.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Action    string
	Channel   string
	Address   string
	Reason    string
	RequestID string
	ClientIP  string
}

// AuditEvent names the actions the verification flow emits.
type AuditEvent string

const (
	EventRegistrationStarted AuditEvent = "registration_started"
	EventRegistrationResumed AuditEvent = "registration_resumed"
	EventEmailVerified       AuditEvent = "email_verified"
	EventPhoneVerified       AuditEvent = "phone_verified"
	EventVerifyFailed        AuditEvent = "verify_failed"
	EventCodeIssued          AuditEvent = "code_issued"
	EventResendRejected      AuditEvent = "resend_rejected"
	EventSessionIssued       AuditEvent = "session_issued"
	EventLoginStarted        AuditEvent = "login_started"
	EventLoginSucceeded      AuditEvent = "login_succeeded"
	EventAccountCompleted    AuditEvent = "account_completed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventRegistrationStarted: CategoryCompliance,
	EventAccountCompleted:    CategoryCompliance,

	EventVerifyFailed:   CategorySecurity,
	EventResendRejected: CategorySecurity,

	EventRegistrationResumed: CategoryOperations,
	EventEmailVerified:       CategoryOperations,
	EventPhoneVerified:       CategoryOperations,
	EventCodeIssued:          CategoryOperations,
	EventSessionIssued:       CategoryOperations,
	EventLoginStarted:        CategoryOperations,
	EventLoginSucceeded:      CategoryOperations,
}

// CategoryOf returns the category for an action, defaulting to operations
// for unknown actions so nothing is silently dropped.
func CategoryOf(action AuditEvent) EventCategory {
	if c, ok := eventCategories[action]; ok {
		return c
	}
	return CategoryOperations
}
