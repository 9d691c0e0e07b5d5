package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/session"
	"storefront/internal/validation"
)

// RoleUser is the role requested for self-registered accounts.
const RoleUser = "User"

// ErrInvalidCredentials is returned when the backend rejects a login.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)

type accountAPI interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.User, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error)
	Logout(ctx context.Context, token string) error
}

type sessionStore interface {
	Get(ctx context.Context, id string) *session.Session
	Teardown(ctx context.Context, id string) error
}

type Service struct {
	api      accountAPI
	sessions sessionStore
	logger   *logrus.Logger
}

func New(api accountAPI, sessions sessionStore, logger *logrus.Logger) *Service {
	return &Service{api: api, sessions: sessions, logger: logging.OrDiscard(logger)}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterInput struct {
	DisplayName     string `json:"displayName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phoneNumber"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// Login authenticates against the backend, stores the credentials in the
// session and pulls the session's remote basket.
func (s *Service) Login(ctx context.Context, sessionID string, in LoginInput) (session.Identity, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return session.Identity{}, err
	}
	user, err := s.api.Login(ctx, domain.LoginRequest{Email: in.Email, Password: in.Password})
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return session.Identity{}, ErrInvalidCredentials
		}
		return session.Identity{}, fmt.Errorf("login: %w", err)
	}
	if user.Email == "" {
		user.Email = in.Email
	}

	sess := s.sessions.Get(ctx, sessionID)
	if err := sess.Credentials.Save(ctx, user); err != nil {
		return session.Identity{}, fmt.Errorf("store credentials: %w", err)
	}
	sess.Cart.Refresh(ctx)

	id := sess.Credentials.Identity(ctx)
	s.logger.WithFields(logrus.Fields{"session": sessionID, "email": id.Email, "admin": id.Admin}).Info("user logged in")
	return id, nil
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validation.Struct(in); err != nil {
		return domain.User{}, err
	}
	user, err := s.api.Register(ctx, domain.RegisterRequest{
		DisplayName:     in.DisplayName,
		Email:           in.Email,
		PhoneNumber:     in.PhoneNumber,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
		Role:            RoleUser,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("register: %w", err)
	}
	user.Token = ""
	return user, nil
}

// Logout notifies the backend and tears the session down. The local teardown
// happens even when the backend call fails.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	token := s.sessions.Get(ctx, sessionID).Credentials.Token(ctx)
	if err := s.api.Logout(ctx, token); err != nil {
		s.logger.WithError(err).WithField("session", sessionID).Warn("backend logout failed")
	}
	if err := s.sessions.Teardown(ctx, sessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.WithField("session", sessionID).Info("user logged out")
	return nil
}

// Me returns the session's identity.
func (s *Service) Me(ctx context.Context, sessionID string) session.Identity {
	return s.sessions.Get(ctx, sessionID).Credentials.Identity(ctx)
}
