package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func call(t *testing.T, fn http.HandlerFunc, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/auth/user", strings.NewReader(body))
}

func TestHandler_Register(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)

	code, env := call(t, h.Register, post(`{"email":"ann@example.com","password":"secret1","firstName":"Ann","lastName":"Lee"}`))
	assert.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.Equal(t, "user successfully registered", env.Message)

	var res RegisterResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.Token)

	code, env = call(t, h.Register, post(`{"email":"ann@example.com","password":"secret1","firstName":"Ann","lastName":"Lee"}`))
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)
	assert.Equal(t, []string{"user already exists"}, env.Errors)
}

func TestHandler_Register_Invalid(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)

	code, env := call(t, h.Register, post(`{"email":"bad","password":"secret1","firstName":"Ann","lastName":"Lee"}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.True(t, strings.HasPrefix(env.Errors[0], "email: "))

	code, env = call(t, h.Register, post(`{"email":`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "request body was incomplete", env.Message)
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann@example.com")
	h := NewHandler(f.svc, nil)

	code, env := call(t, h.Login, post(`{"email":"ann@example.com","password":"secret1"}`))
	assert.Equal(t, http.StatusOK, code)
	var res LoginResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.Token)

	codeWrong, wrong := call(t, h.Login, post(`{"email":"ann@example.com","password":"wrong12"}`))
	codeUnknown, unknown := call(t, h.Login, post(`{"email":"bob@example.com","password":"secret1"}`))
	assert.Equal(t, http.StatusUnauthorized, codeWrong)
	assert.Equal(t, codeWrong, codeUnknown)
	assert.Equal(t, wrong, unknown)
}

func TestHandler_Profile(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ann@example.com")
	h := NewHandler(f.svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user/information", nil)
	req = req.WithContext(token.WithSubject(req.Context(), reg.ID))
	code, env := call(t, h.Profile, req)
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "assword")

	var p map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "ann@example.com", p["email"])
	assert.Equal(t, false, p["verified"])

	code, _ = call(t, h.Profile, httptest.NewRequest(http.MethodGet, "/api/auth/user/information", nil))
	assert.Equal(t, http.StatusUnauthorized, code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/user/information", nil)
	req = req.WithContext(token.WithSubject(req.Context(), "vanished"))
	code, _ = call(t, h.Profile, req)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_ActivateAndReset(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ann@example.com")
	h := NewHandler(f.svc, nil)

	raw, err := f.codec.Encode(reg.ID, token.PurposeActivation, f.svc.actionTTL)
	require.NoError(t, err)
	code, env := call(t, h.Activate, post(`{"token":"`+raw+`"}`))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, env = call(t, h.Activate, post(`{"token":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"invalid token"}, env.Errors)

	codeKnown, known := call(t, h.ForgotPassword, post(`{"email":"ann@example.com"}`))
	codeUnknown, unknown := call(t, h.ForgotPassword, post(`{"email":"bob@example.com"}`))
	assert.Equal(t, http.StatusOK, codeKnown)
	assert.Equal(t, codeKnown, codeUnknown)
	assert.Equal(t, known, unknown)

	reset, err := f.codec.Encode(reg.ID, token.PurposeReset, f.svc.actionTTL)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/api/auth/user/reset-password", strings.NewReader(`{"token":"`+reset+`","password":"newpass1"}`))
	code, _ = call(t, h.ResetPassword, req)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandler_InternalFaultIsOpaque(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	svc := NewUserService(brokenStore{err: errors.New("dial tcp 10.0.0.7:5432: connection refused")},
		BcryptHasher{Cost: bcrypt.MinCost}, f.codec, nil, mail.Templates{}, nil, logger, ServiceConfig{})
	h := NewHandler(svc, logger)

	req := post(`{"email":"ann@example.com","password":"secret1"}`)
	req = req.WithContext(utilities.WithRequestID(context.Background(), "req-1"))
	code, env := call(t, h.Login, req)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", env.Message)
	assert.Empty(t, env.Errors)
	assert.NotContains(t, env.Message, "10.0.0.7")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Contains(t, entry.Message, "connection refused")
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
}
