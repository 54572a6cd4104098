package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/avatar"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// Store is the credential store the service persists users in. Lookups
// return repo.ErrNotFound when nothing matches; Create returns
// repo.ErrDuplicateKey when the email is taken.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) (*entity.User, error)
	Update(ctx context.Context, id string, p entity.UserPatch) error
}

// Mailer schedules a message for background delivery.
type Mailer interface {
	Dispatch(ctx context.Context, msg mail.Message) <-chan error
}

type ServiceConfig struct {
	SessionTTL time.Duration
	ActionTTL  time.Duration
}

// UserService orchestrates authentication and user lifecycle flows.
type UserService struct {
	store     Store
	hasher    PasswordHasher
	codec     *token.Codec
	mailer    Mailer
	templates mail.Templates
	avatars   avatar.Resolver
	logger    *zap.SugaredLogger

	sessionTTL time.Duration
	actionTTL  time.Duration

	dummyOnce   sync.Once
	dummySecret string
}

func NewUserService(
	store Store,
	hasher PasswordHasher,
	codec *token.Codec,
	mailer Mailer,
	templates mail.Templates,
	avatars avatar.Resolver,
	logger *zap.SugaredLogger,
	cfg ServiceConfig,
) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if avatars == nil {
		avatars = avatar.NewGravatar()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Hour
	}
	if cfg.ActionTTL <= 0 {
		cfg.ActionTTL = 10 * time.Minute
	}
	return &UserService{
		store:      store,
		hasher:     hasher,
		codec:      codec,
		mailer:     mailer,
		templates:  templates,
		avatars:    avatars,
		logger:     logger,
		sessionTTL: cfg.SessionTTL,
		actionTTL:  cfg.ActionTTL,
	}
}

// RegisterResult is returned by Register.
type RegisterResult struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token string `json:"token"`
}

// Register creates an unverified account, mails an activation link and
// returns a session token for the new user.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	_, err := s.store.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, common.ErrConflict
	case !errors.Is(err, userrepo.ErrNotFound):
		return nil, pkgerrors.Wrap(err, "find user by email")
	}

	secret, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "hash password")
	}

	u, err := s.store.Create(ctx, &entity.User{
		Email:          req.Email,
		PasswordSecret: secret,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		AvatarURL:      s.avatars.URLFor(req.Email),
	})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, userrepo.ErrDuplicateKey) {
			return nil, common.ErrConflict
		}
		return nil, pkgerrors.Wrap(err, "create user")
	}

	session, err := s.codec.Encode(u.ID, token.PurposeSession, s.sessionTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode session token")
	}

	s.sendActivation(ctx, u)

	s.logger.Infow("user registered", "user_id", u.ID)
	return &RegisterResult{ID: u.ID, Token: session}, nil
}

func (s *UserService) sendActivation(ctx context.Context, u *entity.User) {
	activation, err := s.codec.Encode(u.ID, token.PurposeActivation, s.actionTTL)
	if err != nil {
		s.logger.Errorw("encode activation token failed", "user_id", u.ID, "err", err)
		return
	}
	msg, err := s.templates.Activation(u.Email, u.FirstName, activation, humanDuration(s.actionTTL))
	if err != nil {
		s.logger.Errorw("render activation mail failed", "user_id", u.ID, "err", err)
		return
	}
	s.dispatch(ctx, msg)
}

// Login checks the credentials and returns a session token. Unknown email
// and wrong password produce the same error.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			// keep the timing of the unknown-email path close to a real check
			s.hasher.Verify(s.dummyHash(), req.Password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, pkgerrors.Wrap(err, "find user by email")
	}
	if !s.hasher.Verify(u.PasswordSecret, req.Password) {
		return nil, common.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(u.PasswordSecret) {
		s.rehash(ctx, u.ID, req.Password)
	}

	session, err := s.codec.Encode(u.ID, token.PurposeSession, s.sessionTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode session token")
	}
	return &LoginResult{Token: session}, nil
}

func (s *UserService) rehash(ctx context.Context, id, password string) {
	secret, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warnw("rehash failed", "user_id", id, "err", err)
		return
	}
	if err := s.store.Update(ctx, id, entity.UserPatch{PasswordSecret: &secret}); err != nil {
		s.logger.Warnw("store rehashed secret failed", "user_id", id, "err", err)
	}
}

func (s *UserService) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(utilities.NewKSUID())
		if err != nil {
			s.logger.Warnw("dummy hash failed", "err", err)
		}
		s.dummySecret = h
	})
	return s.dummySecret
}

// Activate marks the token's subject as verified. Activating an already
// verified account succeeds.
func (s *UserService) Activate(ctx context.Context, req ActivateRequest) error {
	id, err := s.codec.Decode(req.Token, token.PurposeActivation)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return pkgerrors.Wrap(err, "find user by id")
	}
	if u.Verified {
		return nil
	}

	verified := true
	if err := s.store.Update(ctx, id, entity.UserPatch{Verified: &verified}); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return pkgerrors.Wrap(err, "mark user verified")
	}
	s.logger.Infow("user activated", "user_id", id)
	return nil
}

// ForgotPassword mails a reset link when the email belongs to an account.
// The result does not reveal whether it does.
func (s *UserService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.logger.Debugw("password reset for unknown email")
			return nil
		}
		return pkgerrors.Wrap(err, "find user by email")
	}

	// failures past the lookup stay silent to the caller
	reset, err := s.codec.Encode(u.ID, token.PurposeReset, s.actionTTL)
	if err != nil {
		s.logger.Errorw("encode reset token failed", "user_id", u.ID, "err", err)
		return nil
	}
	msg, err := s.templates.Reset(u.Email, reset, humanDuration(s.actionTTL))
	if err != nil {
		s.logger.Errorw("render reset mail failed", "user_id", u.ID, "err", err)
		return nil
	}
	s.dispatch(ctx, msg)
	return nil
}

// ResetPassword replaces the secret of the token's subject.
func (s *UserService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	id, err := s.codec.Decode(req.Token, token.PurposeReset)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if _, err := s.store.FindByID(ctx, id); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return pkgerrors.Wrap(err, "find user by id")
	}

	secret, err := s.hasher.Hash(req.Password)
	if err != nil {
		return pkgerrors.Wrap(err, "hash password")
	}
	if err := s.store.Update(ctx, id, entity.UserPatch{PasswordSecret: &secret}); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return pkgerrors.Wrap(err, "update password")
	}
	s.logger.Infow("password reset", "user_id", id)
	return nil
}

// GetProfile returns the public projection of the user.
func (s *UserService) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "find user by id")
	}
	p := u.Profile()
	return &p, nil
}

func (s *UserService) dispatch(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		s.logger.Warnw("no mailer configured, mail dropped", "to", msg.To, "subject", msg.Subject)
		return
	}
	// the dispatcher logs the outcome
	_ = s.mailer.Dispatch(ctx, msg)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
