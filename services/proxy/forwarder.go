// Package proxy forwards authenticated calls to the vendor using the
// caller's cached vendor session.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/services"
	"github.com/upb/tracking-bridge/services/session"
	"github.com/upb/tracking-bridge/services/upstream"
)

// TokenParam is the query parameter carrying the vendor session token
const TokenParam = "token"

// Proxy outcomes
const (
	OutcomeForwarded      = "forwarded"
	OutcomeSessionExpired = "session_expired"
	OutcomeGatewayFault   = "gateway_fault"
)

// VendorGetter issues a GET relative to the vendor base URL
type VendorGetter interface {
	Get(ctx context.Context, path string, params url.Values) (*upstream.Response, error)
}

// Observer counts proxy outcomes
type Observer interface {
	ObserveProxy(outcome string)
}

// Forwarder relays calls to the vendor on behalf of an authenticated caller
type Forwarder struct {
	vendor   VendorGetter
	sessions session.Store
	observer Observer
	logger   *zap.Logger
}

// NewForwarder creates a Forwarder. observer may be nil.
func NewForwarder(vendor VendorGetter, sessions session.Store, observer Observer, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		vendor:   vendor,
		sessions: sessions,
		observer: observer,
		logger:   logger,
	}
}

// Forward sends one GET to path with params and the owner's vendor token. The
// vendor response is returned as-is whatever its status.
func (f *Forwarder) Forward(ctx context.Context, id *identity.Identity, path string, params map[string]interface{}) (*upstream.Response, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, services.ErrPathRequired
	}
	if id == nil || id.Scheme == identity.SchemeAnonymous || id.Subject == "" {
		return nil, services.ErrUnauthorized
	}

	query, err := encodeParams(params)
	if err != nil {
		return nil, services.NewValidationError(err.Error())
	}

	token, ok, err := f.sessions.Get(ctx, id.Subject)
	if err != nil {
		return nil, services.WrapInternal("failed to read vendor session", err)
	}
	if !ok {
		f.observe(OutcomeSessionExpired)
		return nil, services.ErrSessionExpired
	}
	query.Set(TokenParam, token)

	resp, err := f.vendor.Get(ctx, path, query)
	if err != nil {
		if errors.Is(err, upstream.ErrInvalidPath) {
			return nil, services.NewValidationError("path must be relative to the vendor API")
		}
		f.observe(OutcomeGatewayFault)
		if errors.Is(err, upstream.ErrResponseTooLarge) {
			return nil, services.WrapGateway("vendor response too large", err)
		}
		return nil, services.WrapGateway("vendor unreachable", err)
	}

	f.observe(OutcomeForwarded)
	f.logger.Debug("proxied vendor call",
		zap.String("username", id.Subject),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

// encodeParams flattens scalar JSON values into query parameters. Nulls are
// skipped and booleans keep their JSON spelling.
func encodeParams(params map[string]interface{}) (url.Values, error) {
	query := url.Values{}
	if len(params) == 0 {
		return query, nil
	}

	scalars := make(map[string]interface{}, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case nil:
			continue
		case bool:
			scalars[key] = strconv.FormatBool(v)
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("param %q must be a scalar", key)
		default:
			scalars[key] = v
		}
	}

	var flat map[string]string
	if err := mapstructure.WeakDecode(scalars, &flat); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	for key, value := range flat {
		query.Set(key, value)
	}
	return query, nil
}

func (f *Forwarder) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveProxy(outcome)
	}
}
