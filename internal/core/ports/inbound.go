package ports

import (
	"context"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

// Workspace is the inbound contract of one session's application state.
type Workspace interface {
	Session() domain.Session
	LoadClients(ctx context.Context) ([]domain.Client, error)
	CreateClient(ctx context.Context, name string) (domain.Client, error)
	SelectClient(ctx context.Context, clientID string) ([]domain.Document, error)
	UpdateDocument(ctx context.Context, clientID, documentID string, edit domain.DocumentEdit) (domain.Document, error)
	UploadAndRefresh(ctx context.Context, clientID string, files []domain.UploadFile) ([]domain.Document, error)
	AnalyzeDocument(ctx context.Context, clientID, documentID string) (domain.LedgerEntry, error)
	EnqueueAnalysis(ctx context.Context, clientID, documentID string) (*domain.AnalysisJob, error)
	Ledger(ctx context.Context, clientID string) (domain.Ledger, error)
	ExportLedger(ctx context.Context, clientID string) ([]byte, error)
}

// WorkspaceProvider resolves sessions to workspaces and manages the session
// lifecycle.
type WorkspaceProvider interface {
	Login(ctx context.Context, accessToken string) (domain.Session, error)
	Workspace(ctx context.Context, sessionID string) (Workspace, error)
	Logout(ctx context.Context, sessionID string) error
}

// AnalysisJobReader is the inbound read model for background analysis jobs.
type AnalysisJobReader interface {
	GetByID(ctx context.Context, id string) (*domain.AnalysisJob, error)
}

// AnalysisJobProcessor is the inbound contract for asynchronous analysis.
type AnalysisJobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// ProfileReader exposes aggregated customer profiles.
type ProfileReader interface {
	Get(ctx context.Context, customerID string) (domain.CustomerProfile, error)
	List(ctx context.Context) ([]domain.CustomerProfile, error)
}
