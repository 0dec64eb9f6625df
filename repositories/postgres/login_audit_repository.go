package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/models"
	"github.com/upb/tracking-bridge/repositories"
)

// LoginAuditRepository implements the repositories.LoginAuditRepository interface
type LoginAuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLoginAuditRepository creates a new login audit repository
func NewLoginAuditRepository(db *DB, logger *zap.Logger) repositories.LoginAuditRepository {
	return &LoginAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a login audit row
func (r *LoginAuditRepository) Insert(ctx context.Context, audit *models.LoginAudit) error {
	query := `
		INSERT INTO login_audits (
			id, user_id, username, provider, succeeded, failure_reason,
			client_ip, user_agent, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		audit.ID,
		audit.UserID,
		audit.Username,
		audit.Provider,
		audit.Succeeded,
		audit.FailureReason,
		audit.ClientIP,
		audit.UserAgent,
		audit.RequestID,
		audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert login audit: %w", err)
	}

	r.logger.Debug("login audit inserted",
		zap.String("id", audit.ID.String()),
		zap.String("username", audit.Username),
		zap.Bool("succeeded", audit.Succeeded))
	return nil
}

// ListByUser returns the user's most recent attempts first
func (r *LoginAuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LoginAudit, error) {
	query := `
		SELECT id, user_id, username, provider, succeeded, failure_reason,
		       client_ip, user_agent, request_id, created_at
		FROM login_audits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login audits: %w", err)
	}
	defer rows.Close()

	audits := make([]*models.LoginAudit, 0)
	for rows.Next() {
		audit := &models.LoginAudit{}
		var (
			uid           uuid.NullUUID
			failureReason sql.NullString
			clientIP      sql.NullString
			userAgent     sql.NullString
			requestID     sql.NullString
		)
		err := rows.Scan(
			&audit.ID,
			&uid,
			&audit.Username,
			&audit.Provider,
			&audit.Succeeded,
			&failureReason,
			&clientIP,
			&userAgent,
			&requestID,
			&audit.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login audit: %w", err)
		}
		if uid.Valid {
			id := uid.UUID
			audit.UserID = &id
		}
		if failureReason.Valid {
			reason := failureReason.String
			audit.FailureReason = &reason
		}
		audit.ClientIP = clientIP.String
		audit.UserAgent = userAgent.String
		audit.RequestID = requestID.String
		audits = append(audits, audit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login audit rows: %w", err)
	}

	return audits, nil
}
