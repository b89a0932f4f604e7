package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

// SessionService owns the credential lifecycle: it is saved at login,
// loaded on restore and cleared on logout or authentication rejection.
type SessionService struct {
	identity  ports.IdentityProvider
	directory *ClientDirectoryUseCase
	store     ports.SessionStore
	rootName  string
	newID     func() string
	now       func() time.Time
}

func NewSessionService(
	identity ports.IdentityProvider,
	directory *ClientDirectoryUseCase,
	store ports.SessionStore,
	rootFolderName string,
) *SessionService {
	if rootFolderName == "" {
		rootFolderName = "brokerApp"
	}
	return &SessionService{
		identity:  identity,
		directory: directory,
		store:     store,
		rootName:  rootFolderName,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

func (s *SessionService) Login(ctx context.Context, accessToken string) (domain.Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return domain.Session{}, domain.WrapError(domain.ErrInvalidInput, "login", errors.New("access token is required"))
	}

	email, err := s.identity.UserEmail(ctx, accessToken)
	if err != nil {
		return domain.Session{}, identityError(err)
	}

	rootID, err := s.directory.EnsureRootFolder(ctx, accessToken, s.rootName)
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:           s.newID(),
		AccessToken:  accessToken,
		RootFolderID: rootID,
		UserEmail:    email,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return domain.Session{}, err
	}
	slog.Info("session_started", "session_id", session.ID, "root_folder_id", rootID)
	return session, nil
}

// Restore returns the stored session. A missing or partial session means the
// caller has to log in again.
func (s *SessionService) Restore(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.WrapError(domain.ErrUnauthorized, "restore session", errors.New("session id is required"))
	}
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.Session{}, domain.WrapError(domain.ErrUnauthorized, "restore session", err)
		}
		return domain.Session{}, err
	}
	if !session.Complete() {
		return domain.Session{}, domain.WrapError(domain.ErrUnauthorized, "restore session", errors.New("stored session is incomplete"))
	}
	return session, nil
}

func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	slog.Info("session_ended", "session_id", sessionID)
	return nil
}

// Invalidate drops a session whose credential the remote service rejected.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		slog.Warn("session_invalidate_failed", "session_id", sessionID, "error", err)
		return
	}
	slog.Warn("session_invalidated", "session_id", sessionID)
}

// identityError keeps outages and cancellations distinguishable from a
// rejected token. Untyped failures mean the token was not accepted.
func identityError(err error) error {
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("fetch user profile: %w", err)
	}
	return domain.WrapError(domain.ErrUnauthorized, "fetch user profile", err)
}
