package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

// WorkspaceRegistry keeps one StateController per live session for the
// lifetime of the process.
type WorkspaceRegistry struct {
	sessions *SessionService
	services Services

	mu          sync.Mutex
	controllers map[string]*StateController
}

func NewWorkspaceRegistry(sessions *SessionService, services Services) *WorkspaceRegistry {
	return &WorkspaceRegistry{
		sessions:    sessions,
		services:    services,
		controllers: make(map[string]*StateController),
	}
}

func (r *WorkspaceRegistry) Login(ctx context.Context, accessToken string) (domain.Session, error) {
	session, err := r.sessions.Login(ctx, accessToken)
	if err != nil {
		return domain.Session{}, err
	}
	r.attach(session)
	return session, nil
}

// Workspace returns the controller of sessionID, restoring the session from
// the store when this process has not seen it yet.
func (r *WorkspaceRegistry) Workspace(ctx context.Context, sessionID string) (ports.Workspace, error) {
	r.mu.Lock()
	ctrl, ok := r.controllers[sessionID]
	r.mu.Unlock()
	if ok {
		return ctrl, nil
	}

	session, err := r.sessions.Restore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return r.attach(session), nil
}

func (r *WorkspaceRegistry) Logout(ctx context.Context, sessionID string) error {
	r.detach(sessionID)
	return r.sessions.Logout(ctx, sessionID)
}

func (r *WorkspaceRegistry) attach(session domain.Session) *StateController {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.controllers[session.ID]; ok {
		return existing
	}
	sessionID := session.ID
	ctrl := NewStateController(session, r.services, func() {
		if r.detach(sessionID) {
			r.sessions.Invalidate(context.Background(), sessionID)
		}
	})
	r.controllers[session.ID] = ctrl
	return ctrl
}

func (r *WorkspaceRegistry) detach(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.controllers[sessionID]; !ok {
		return false
	}
	delete(r.controllers, sessionID)
	return true
}
