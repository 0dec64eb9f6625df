package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderWhatsGPS is the provider recorded for vendor logins
const ProviderWhatsGPS = "WhatsGPS"

// LoginAudit is an append-only record of one login attempt
type LoginAudit struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        *uuid.UUID `json:"userId,omitempty" db:"user_id"`
	Username      string     `json:"username" db:"username"`
	Provider      string     `json:"provider" db:"provider"`
	Succeeded     bool       `json:"succeeded" db:"succeeded"`
	FailureReason *string    `json:"failureReason,omitempty" db:"failure_reason"`
	ClientIP      string     `json:"clientIp" db:"client_ip"`
	UserAgent     string     `json:"userAgent" db:"user_agent"`
	RequestID     string     `json:"requestId,omitempty" db:"request_id"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the LoginAudit model
func (LoginAudit) TableName() string {
	return "login_audits"
}

// NewLoginAudit creates an audit row for username
func NewLoginAudit(username string, succeeded bool) *LoginAudit {
	return &LoginAudit{
		ID:        uuid.New(),
		Username:  username,
		Provider:  ProviderWhatsGPS,
		Succeeded: succeeded,
		CreatedAt: time.Now().UTC(),
	}
}

// WithUser links the row to a local user
func (a *LoginAudit) WithUser(userID uuid.UUID) *LoginAudit {
	a.UserID = &userID
	return a
}

// WithClient records where the attempt came from
func (a *LoginAudit) WithClient(ip, userAgent string) *LoginAudit {
	a.ClientIP = ip
	a.UserAgent = userAgent
	return a
}

// WithRequestID records the request correlation id
func (a *LoginAudit) WithRequestID(requestID string) *LoginAudit {
	a.RequestID = requestID
	return a
}

// WithFailure records why the attempt failed
func (a *LoginAudit) WithFailure(reason string) *LoginAudit {
	a.Succeeded = false
	a.FailureReason = &reason
	return a
}
