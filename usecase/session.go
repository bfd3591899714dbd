package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/domains/avatar"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/validations"
)

// SessionService stores credentials in the key-value store and guards gateway access.
type SessionService struct {
	store       kvstore.Store
	revalidator session.Revalidator
	auth        chat.Authenticator
	avatars     avatar.Cache
}

var (
	_ session.Store = (*SessionService)(nil)
	_ session.Gate  = (*SessionService)(nil)
)

// NewSessionService builds the service. revalidator, auth and avatars may be nil.
func NewSessionService(store kvstore.Store, revalidator session.Revalidator, auth chat.Authenticator, avatars avatar.Cache) *SessionService {
	return &SessionService{
		store:       store,
		revalidator: revalidator,
		auth:        auth,
		avatars:     avatars,
	}
}

func (s *SessionService) SaveSession(ctx context.Context, userID, sessionString string) error {
	if err := s.store.Set(ctx, session.UserIDKey, userID); err != nil {
		return fmt.Errorf("failed to save user id: %w", err)
	}
	if err := s.store.Set(ctx, session.SessionStringKey, sessionString); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionService) LoadSession(ctx context.Context) (string, string, error) {
	values, err := s.store.MultiGet(ctx, []string{session.UserIDKey, session.SessionStringKey})
	if err != nil {
		return "", "", fmt.Errorf("failed to load session: %w", err)
	}
	return values[session.UserIDKey], values[session.SessionStringKey], nil
}

func (s *SessionService) ClearSession(ctx context.Context) error {
	if err := s.store.MultiRemove(ctx, []string{session.UserIDKey, session.SessionStringKey}); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *SessionService) SaveToken(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, session.TokenKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *SessionService) LoadToken(ctx context.Context) (string, error) {
	token, _, err := s.store.Get(ctx, session.TokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (s *SessionService) ClearToken(ctx context.Context) error {
	if err := s.store.Remove(ctx, session.TokenKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// RequireAuth returns the stored credentials when the user and session exist and a
// token exists or can be obtained silently.
func (s *SessionService) RequireAuth(ctx context.Context) (session.Record, error) {
	userID, sessionString, err := s.LoadSession(ctx)
	if err != nil {
		logrus.WithError(err).Warn("[SESSION] Failed to read session, treating as logged out")
		return session.Record{}, session.ErrAuthRequired
	}
	if userID == "" || sessionString == "" {
		return session.Record{}, session.ErrAuthRequired
	}

	rec := session.Record{UserID: userID, SessionString: sessionString}

	token, err := s.LoadToken(ctx)
	if err != nil {
		logrus.WithError(err).Warn("[SESSION] Failed to read token")
	}
	if token != "" {
		rec.Token = token
		return rec, nil
	}

	if s.revalidator == nil {
		return session.Record{}, session.ErrRevalidationRequired
	}

	token, err = s.revalidator.Revalidate(ctx, rec)
	if err != nil {
		if errors.Is(err, chat.ErrSessionExpired) {
			logrus.Info("[SESSION] Stored session was rejected, clearing it")
			if clearErr := s.ClearSession(ctx); clearErr != nil {
				logrus.WithError(clearErr).Warn("[SESSION] Failed to clear rejected session")
			}
			return session.Record{}, session.ErrAuthRequired
		}
		return session.Record{}, fmt.Errorf("failed to revalidate session: %w", err)
	}
	if token == "" {
		return session.Record{}, session.ErrAuthRequired
	}

	if err := s.SaveToken(ctx, token); err != nil {
		logrus.WithError(err).Warn("[SESSION] Failed to persist revalidated token")
	}
	rec.Token = token
	logrus.Infof("[SESSION] Session of user %s revalidated", userID)
	return rec, nil
}

// IsAuthenticated is RequireAuth without the error detail.
func (s *SessionService) IsAuthenticated(ctx context.Context) bool {
	_, err := s.RequireAuth(ctx)
	return err == nil
}

// SendCode starts the login flow.
func (s *SessionService) SendCode(ctx context.Context, phone string) (chat.SentCode, error) {
	if s.auth == nil {
		return chat.SentCode{}, errors.New("gateway does not support login")
	}
	if err := validations.ValidateSendCode(ctx, phone); err != nil {
		return chat.SentCode{}, err
	}
	return s.auth.SendCode(ctx, phone)
}

// SignIn completes the login and persists the returned credentials.
// chat.ErrPasswordRequired is returned untouched so callers can ask for the 2FA password.
func (s *SessionService) SignIn(ctx context.Context, req chat.SignInRequest) (session.Record, error) {
	if s.auth == nil {
		return session.Record{}, errors.New("gateway does not support login")
	}
	if err := validations.ValidateSignIn(ctx, req); err != nil {
		return session.Record{}, err
	}
	authz, err := s.auth.SignIn(ctx, req)
	if err != nil {
		return session.Record{}, err
	}
	return s.persist(ctx, authz)
}

// CheckPassword completes a login that needed the 2FA password.
func (s *SessionService) CheckPassword(ctx context.Context, phone, password string) (session.Record, error) {
	if s.auth == nil {
		return session.Record{}, errors.New("gateway does not support login")
	}
	if err := validations.ValidatePassword(ctx, chat.PasswordRequest{Phone: phone, Password: password}); err != nil {
		return session.Record{}, err
	}
	authz, err := s.auth.CheckPassword(ctx, phone, password)
	if err != nil {
		return session.Record{}, err
	}
	return s.persist(ctx, authz)
}

func (s *SessionService) persist(ctx context.Context, authz chat.Authorization) (session.Record, error) {
	if err := s.SaveSession(ctx, authz.UserID, authz.SessionString); err != nil {
		return session.Record{}, err
	}
	if authz.Token != "" {
		if err := s.SaveToken(ctx, authz.Token); err != nil {
			return session.Record{}, err
		}
	}
	logrus.Infof("[SESSION] User %s logged in", authz.UserID)
	return session.Record{UserID: authz.UserID, SessionString: authz.SessionString, Token: authz.Token}, nil
}

// Logout clears the credentials and the avatar cache of the previous user.
func (s *SessionService) Logout(ctx context.Context) error {
	if err := s.ClearSession(ctx); err != nil {
		return err
	}
	if err := s.ClearToken(ctx); err != nil {
		return err
	}
	if s.avatars != nil {
		s.avatars.Clear(ctx)
	}
	return nil
}
