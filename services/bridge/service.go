// Package bridge turns a vendor login into a local user, a signed credential
// and a cached vendor session.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/credential"
	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/models"
	"github.com/upb/tracking-bridge/repositories"
	"github.com/upb/tracking-bridge/services"
	"github.com/upb/tracking-bridge/services/session"
	"github.com/upb/tracking-bridge/services/upstream"
)

// Login outcomes, also used as audit failure reasons
const (
	OutcomeSuccess           = "success"
	OutcomeUpstreamRejected  = "upstream_rejected"
	OutcomeVendorUnreachable = "vendor_unreachable"
	OutcomeVendorNotJSON     = "vendor_not_json"
	OutcomeVendorTooLarge    = "vendor_response_too_large"
	OutcomeTokenNotFound     = "token_not_found"
	OutcomeInternal          = "internal_error"
	OutcomeThrottled         = "throttled"
)

// VendorLogin sends the legacy login request
type VendorLogin interface {
	Login(ctx context.Context, creds upstream.Credentials) (*upstream.Response, error)
}

// CredentialIssuer signs local credentials
type CredentialIssuer interface {
	Issue(subject string, role identity.Role) (*credential.Token, error)
}

// AuditRecorder queues failed-attempt audit rows
type AuditRecorder interface {
	Record(audit *models.LoginAudit) error
}

// Throttle refuses logins after repeated failures
type Throttle interface {
	Allow(ctx context.Context, username, clientIP string) error
}

// Observer counts login outcomes
type Observer interface {
	ObserveLogin(outcome string)
}

// Deps wires a Service. Throttle, Recorder and Observer may be nil.
type Deps struct {
	Vendor      VendorLogin
	TokenPaths  []string
	Users       repositories.UserRepository
	LoginAudits repositories.LoginAuditRepository
	TxManager   repositories.TransactionManager
	Issuer      CredentialIssuer
	Sessions    session.Store
	SessionTTL  time.Duration
	Admins      identity.AdminList
	Throttle    Throttle
	Recorder    AuditRecorder
	Observer    Observer
	Logger      *zap.Logger
}

// LoginInput is a login request with its client metadata
type LoginInput struct {
	Username        string
	Password        string
	Locale          string
	TZOffsetSeconds *int
	ClientIP        string
	UserAgent       string
	RequestID       string
}

// UserSummary is the public view of a local user
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"isAdmin"`
}

// LoginResult is returned to the caller after a successful login
type LoginResult struct {
	Credential string      `json:"credential"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	User       UserSummary `json:"user"`
	RoleID     int         `json:"roleId"`
	RoleName   string      `json:"roleName"`

	// VendorProfile is the vendor's own user object, when it sent one
	VendorProfile json.RawMessage `json:"vendorProfile,omitempty"`
}

// Service runs the login bridge
type Service struct {
	vendor     VendorLogin
	tokenPaths []string
	users      repositories.UserRepository
	audits     repositories.LoginAuditRepository
	txMgr      repositories.TransactionManager
	issuer     CredentialIssuer
	sessions   session.Store
	sessionTTL time.Duration
	admins     identity.AdminList
	throttle   Throttle
	recorder   AuditRecorder
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a login bridge
func NewService(d Deps) *Service {
	paths := d.TokenPaths
	if len(paths) == 0 {
		paths = upstream.DefaultTokenPaths
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		vendor:     d.Vendor,
		tokenPaths: paths,
		users:      d.Users,
		audits:     d.LoginAudits,
		txMgr:      d.TxManager,
		issuer:     d.Issuer,
		sessions:   d.Sessions,
		sessionTTL: d.SessionTTL,
		admins:     d.Admins,
		throttle:   d.Throttle,
		recorder:   d.Recorder,
		observer:   d.Observer,
		logger:     logger,
		now:        time.Now,
	}
}

// Login validates the caller's vendor credentials and, on success, returns a
// local credential. The vendor token is kept in the session store under the
// username.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, services.ErrMissingLogin
	}

	log := s.logger.With(zap.String("username", username), zap.String("request_id", in.RequestID))

	if s.throttle != nil {
		if err := s.throttle.Allow(ctx, username, in.ClientIP); err != nil {
			s.observe(OutcomeThrottled)
			log.Info("login refused before reaching vendor", zap.Error(err))
			return nil, err
		}
	}

	// SEND
	resp, err := s.vendor.Login(ctx, upstream.Credentials{
		Username:        username,
		Password:        in.Password,
		Locale:          in.Locale,
		TZOffsetSeconds: in.TZOffsetSeconds,
	})
	if err != nil {
		if errors.Is(err, upstream.ErrResponseTooLarge) {
			s.fail(in, username, OutcomeVendorTooLarge)
			return nil, services.WrapGateway("vendor response too large", err)
		}
		s.fail(in, username, OutcomeVendorUnreachable)
		return nil, services.WrapGateway("vendor unreachable", err)
	}

	// VALIDATE_RESPONSE
	if !resp.IsSuccess() {
		s.fail(in, username, OutcomeUpstreamRejected)
		log.Info("vendor rejected login", zap.Int("status", resp.StatusCode))
		return nil, &services.UpstreamError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Body:        resp.Body,
		}
	}
	if !resp.IsJSON() || !gjson.ValidBytes(resp.Body) {
		s.fail(in, username, OutcomeVendorNotJSON)
		log.Warn("vendor login response is not JSON", zap.String("content_type", resp.ContentType))
		return nil, services.ErrVendorNotJSON
	}

	// EXTRACT_TOKEN
	vendorToken, ok := upstream.ExtractToken(resp.Body, s.tokenPaths)
	if !ok {
		s.fail(in, username, OutcomeTokenNotFound)
		log.Warn("vendor token not found in login response")
		return nil, services.ErrVendorTokenNotFound
	}

	// RESOLVE_LOCAL_USER
	user := s.resolveUser(ctx, username, log)
	user.RecordLogin(s.now())

	// PERSIST
	if err := s.persist(ctx, user, in); err != nil {
		log.Error("failed to persist login",
			zap.String("policy", "credential_issued_despite_persist_failure"),
			zap.Error(err))
	}

	// ISSUE_CREDENTIAL
	role := identity.ResolveRole(user.IsAdmin)
	token, err := s.issuer.Issue(username, role)
	if err != nil {
		s.observe(OutcomeInternal)
		return nil, services.WrapInternal("failed to issue credential", err)
	}

	// RESPOND
	if err := s.sessions.Put(ctx, username, vendorToken, s.sessionTTL); err != nil {
		s.observe(OutcomeInternal)
		return nil, services.WrapInternal("failed to store vendor session", err)
	}

	s.observe(OutcomeSuccess)
	log.Info("vendor login succeeded", zap.String("role", role.Name), zap.String("credential_id", token.ID))

	result := &LoginResult{
		Credential: token.Value,
		ExpiresAt:  token.ExpiresAt,
		User: UserSummary{
			ID:       user.ID,
			Username: user.Username,
			IsAdmin:  user.IsAdmin,
		},
		RoleID:   role.ID,
		RoleName: role.Name,
	}
	if profile, ok := upstream.ExtractProfile(resp.Body); ok {
		result.VendorProfile = profile
	}
	return result, nil
}

// resolveUser returns the stored user with its admin flag widened by the
// allow-list, or a new unsaved user. Lookup failures are logged and treated
// as a first login.
func (s *Service) resolveUser(ctx context.Context, username string, log *zap.Logger) *models.User {
	allowListed := s.admins.Contains(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Error("failed to look up local user", zap.Error(err))
		}
		return models.NewUser(username, allowListed)
	}

	user.IsAdmin = user.IsAdmin || allowListed
	return user
}

func (s *Service) persist(ctx context.Context, user *models.User, in LoginInput) error {
	_, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.User, error) {
		if err := s.users.Upsert(ctx, user); err != nil {
			return nil, err
		}
		audit := models.NewLoginAudit(user.Username, true).
			WithUser(user.ID).
			WithClient(in.ClientIP, in.UserAgent).
			WithRequestID(in.RequestID)
		if err := s.audits.Insert(ctx, audit); err != nil {
			return nil, err
		}
		return user, nil
	})
	return err
}

// fail records a failed attempt off the request path
func (s *Service) fail(in LoginInput, username, reason string) {
	s.observe(reason)
	if s.recorder == nil {
		return
	}
	audit := models.NewLoginAudit(username, false).
		WithFailure(reason).
		WithClient(in.ClientIP, in.UserAgent).
		WithRequestID(in.RequestID)
	if err := s.recorder.Record(audit); err != nil {
		s.logger.Warn("failed to queue login audit", zap.String("username", username), zap.Error(err))
	}
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveLogin(outcome)
	}
}

// Logout drops the vendor session held for owner. Blank owners and missing
// sessions are not errors.
func (s *Service) Logout(ctx context.Context, owner string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil
	}
	if err := s.sessions.Remove(ctx, owner); err != nil {
		return services.WrapInternal("failed to remove vendor session", err)
	}
	s.logger.Info("vendor session removed", zap.String("username", owner))
	return nil
}
