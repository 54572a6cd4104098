package user

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const maxBodyBytes = 1 << 20

// Handler exposes HTTP endpoints for the account lifecycle.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, "errors occured while registering")
		return
	}
	utilities.WriteSuccess(w, http.StatusCreated, "user successfully registered", res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, "errors occured while authentification")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "authentification was successfull", res)
}

// Profile answers with the caller's own profile. It must sit behind the
// session gate, which puts the subject into the request context.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := token.SubjectFromContext(r.Context())
	if !ok {
		h.fail(w, r, common.ErrUnauthenticated, "errors occured while authentification")
		return
	}
	p, err := h.svc.GetProfile(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "errors occured while fetching user information")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "user information succesfully fetched", p)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Activate(r.Context(), req); err != nil {
		h.fail(w, r, err, "errors occured while activating account")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "account successfully activated", nil)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req); err != nil {
		h.fail(w, r, err, "errors occured while requesting password reset")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "if the email is registered a reset link has been sent", nil)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		h.fail(w, r, err, "errors occured while resetting password")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "password successfully reset", nil)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		utilities.WriteFailure(w, http.StatusBadRequest, "request body was incomplete", nil)
		return false
	}
	return true
}

// fail writes the failure envelope for err. Internal faults are logged
// with their stack and answered with an opaque message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := common.HTTPStatus(err)
	if !common.IsDomain(err) {
		h.logger.With("request_id", utilities.RequestIDFromContext(r.Context())).
			Errorf("%s %s failed: %+v", r.Method, r.URL.Path, err)
		utilities.WriteFailure(w, status, common.ErrInternal.Error(), nil)
		return
	}

	h.logger.Debugw("request rejected", "path", r.URL.Path, "status", status, "err", err)
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		utilities.WriteFailure(w, status, message, ve.Messages())
		return
	}
	utilities.WriteFailure(w, status, message, []string{publicMessage(err)})
}

// publicMessage is the sentinel text for err, never the wrapped cause.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		common.ErrConflict,
		common.ErrInvalidCredentials,
		common.ErrInvalidToken,
		common.ErrNotFound,
		common.ErrUnauthenticated,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return common.ErrValidationFailed.Error()
}
