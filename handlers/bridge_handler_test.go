package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/middleware"
	"github.com/upb/tracking-bridge/services"
	"github.com/upb/tracking-bridge/services/bridge"
	"github.com/upb/tracking-bridge/utils"
)

// MockLoginService is a mock implementation of LoginService
type MockLoginService struct {
	mock.Mock
}

func (m *MockLoginService) Login(ctx context.Context, in bridge.LoginInput) (*bridge.LoginResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bridge.LoginResult), args.Error(1)
}

func (m *MockLoginService) Logout(ctx context.Context, owner string) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func withIdentity(r *http.Request, id *identity.Identity) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), id))
}

func TestBridgeHandler_HandleLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())

		userID := uuid.New()
		svc.On("Login", mock.Anything, mock.MatchedBy(func(in bridge.LoginInput) bool {
			return in.Username == "alice" && in.Password == "pw" && in.Locale == "es" &&
				in.TZOffsetSeconds != nil && *in.TZOffsetSeconds == -18000 &&
				in.ClientIP == "203.0.113.7" && in.UserAgent == "tracker/1.0"
		})).Return(&bridge.LoginResult{
			Credential: "jwt",
			User:       bridge.UserSummary{ID: userID, Username: "alice"},
			RoleID:     identity.RoleUser.ID,
			RoleName:   identity.RoleUser.Name,
		}, nil)

		body := `{"username":"alice","password":"pw","lang":"es","timeZoneSecond":-18000}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/vendor/login", strings.NewReader(body))
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.Header.Set("User-Agent", "tracker/1.0")
		w := httptest.NewRecorder()

		handler.HandleLogin(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "jwt", response["credential"])
		assert.Equal(t, "User", response["roleName"])
		assert.Equal(t, float64(1), response["roleId"])
		user := response["user"].(map[string]interface{})
		assert.Equal(t, userID.String(), user["id"])
		assert.Equal(t, false, user["isAdmin"])
		svc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		handler.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("blank username fails validation", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		handler.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/",
			strings.NewReader(`{"username":"   ","password":"pw"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "validation_error", response.Error)
		assert.NotEmpty(t, response.Fields)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("vendor rejection is relayed", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())
		svc.On("Login", mock.Anything, mock.Anything).Return(nil, &services.UpstreamError{
			StatusCode:  http.StatusUnauthorized,
			ContentType: "application/json",
			Body:        []byte(`{"ret":0,"msg":"bad password"}`),
		})

		w := httptest.NewRecorder()
		handler.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/",
			strings.NewReader(`{"username":"alice","password":"nope"}`)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"ret":0,"msg":"bad password"}`, w.Body.String())
	})

	t.Run("gateway fault", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())
		svc.On("Login", mock.Anything, mock.Anything).Return(nil, services.ErrVendorTokenNotFound)

		w := httptest.NewRecorder()
		handler.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/",
			strings.NewReader(`{"username":"alice","password":"pw"}`)))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "gateway_fault", response.Error)
	})
}

func TestBridgeHandler_HandleVendorMe(t *testing.T) {
	handler := NewBridgeHandler(new(MockLoginService), zap.NewNop())

	t.Run("admin identity", func(t *testing.T) {
		id := identity.New("root", "root", identity.RoleAdmin, identity.SchemeBearer)
		w := httptest.NewRecorder()
		handler.HandleVendorMe(w, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), id))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"name":"root","roleId":2}`, w.Body.String())
	})

	t.Run("role id defaults to user", func(t *testing.T) {
		id := &identity.Identity{Subject: "bob", Name: "bob", Scheme: identity.SchemeBearer, Claims: identity.Claims{}}
		w := httptest.NewRecorder()
		handler.HandleVendorMe(w, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), id))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"name":"bob","roleId":1}`, w.Body.String())
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleVendorMe(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBridgeHandler_HandleLogout(t *testing.T) {
	t.Run("uses identity over body", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())
		svc.On("Logout", mock.Anything, "alice").Return(nil)

		id := identity.New("alice", "alice", identity.RoleUser, identity.SchemeBearer)
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"mallory"}`))
		w := httptest.NewRecorder()
		handler.HandleLogout(w, withIdentity(req, id))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("anonymous uses body username", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())
		svc.On("Logout", mock.Anything, "bob").Return(nil)

		w := httptest.NewRecorder()
		handler.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"bob"}`)))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("anonymous without body", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())
		svc.On("Logout", mock.Anything, "").Return(nil)

		w := httptest.NewRecorder()
		handler.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		handler.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("[")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		svc := new(MockLoginService)
		handler := NewBridgeHandler(svc, zap.NewNop())
		svc.On("Logout", mock.Anything, "bob").Return(services.WrapInternal("failed to remove vendor session", assert.AnError))

		w := httptest.NewRecorder()
		handler.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"bob"}`)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestBridgeHandler_HandleAuthMe(t *testing.T) {
	handler := NewBridgeHandler(new(MockLoginService), zap.NewNop())

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleAuthMe(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":null,"username":null,"role":"user"}`, w.Body.String())
	})

	t.Run("trusted header identity", func(t *testing.T) {
		id := identity.New("device-7", "device-7", identity.RoleUser, identity.SchemeTrustedHeader)
		w := httptest.NewRecorder()
		handler.HandleAuthMe(w, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), id))

		assert.JSONEq(t, `{"id":"device-7","username":"device-7","role":"User"}`, w.Body.String())
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for is ignored", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "real ip is ignored", headers: map[string]string{"X-Real-IP": "4.3.2.1"}, remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "ipv6 remote addr", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote addr", remote: "9.9.9.9:1234", want: "9.9.9.9"},
		{name: "remote addr without port", remote: "9.9.9.9", want: "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
