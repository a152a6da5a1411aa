package domain

import "time"

// AuditAction enumerates the recorded authentication events.
type AuditAction string

const (
	AuditLoginSucceeded     AuditAction = "login.succeeded"
	AuditLoginFailed        AuditAction = "login.failed"
	AuditChallengeIssued    AuditAction = "login.challenge_issued"
	AuditSecondFactorOK     AuditAction = "second_factor.succeeded"
	AuditSecondFactorFailed AuditAction = "second_factor.failed"
	AuditLogout             AuditAction = "logout"
	AuditRegistered         AuditAction = "registered"
	AuditTwoFactorEnabled   AuditAction = "second_factor.enabled"
	AuditTwoFactorDisabled  AuditAction = "second_factor.disabled"
	AuditPasswordChanged    AuditAction = "password.changed"
	AuditRoleChanged        AuditAction = "role.changed"
)

// AuditEntry records a single authentication event for the admin trail.
type AuditEntry struct {
	ID          string
	PrincipalID *string
	Action      AuditAction
	Detail      string
	IP          *string
	CreatedAt   time.Time
}

// SecurityEvent is the envelope payload published to the event bus for
// every audit-worthy action.
type SecurityEvent struct {
	EventID     string
	Action      AuditAction
	PrincipalID string
	Username    string
	Detail      string
	OccurredAt  time.Time
	Metadata    map[string]any
}
