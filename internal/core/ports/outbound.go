package ports

import (
	"context"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

// StorageGateway issues authenticated calls against the remote file store.
// Every call carries the caller's access token; an authentication rejection
// surfaces as domain.ErrUnauthorized.
type StorageGateway interface {
	FindFolderByName(ctx context.Context, token, name string) (*domain.StorageEntry, error)
	FindFileByName(ctx context.Context, token, parentID, name string) (*domain.StorageEntry, error)
	CreateFolder(ctx context.Context, token, name, parentID string) (*domain.StorageEntry, error)
	ListFolderContents(ctx context.Context, token, folderID string) ([]domain.StorageEntry, error)
	UploadFile(ctx context.Context, token, folderID string, file domain.UploadFile) (*domain.StorageEntry, error)
	UpdateFileContent(ctx context.Context, token, fileID, mimeType string, content []byte) error
	UpdateMetadata(ctx context.Context, token, fileID string, patch domain.MetadataPatch) error
	DownloadFile(ctx context.Context, token, fileID string) ([]byte, error)
	SetPermissions(ctx context.Context, token, fileID, granteeEmail string) error
}

// IdentityProvider resolves the profile behind an access token.
type IdentityProvider interface {
	UserEmail(ctx context.Context, token string) (string, error)
}

// AnalysisAPI is the remote document-analysis service.
type AnalysisAPI interface {
	Submit(ctx context.Context, fileName string, content []byte) (domain.AnalysisHandle, error)
	JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
	Standardize(ctx context.Context, documentID, schemaID string) (string, error)
	Standardization(ctx context.Context, standardizationID string) ([]byte, error)
}

// ContentInspector validates document bytes before they are submitted for
// analysis and reports the page count when known.
type ContentInspector interface {
	Inspect(ctx context.Context, mimeType string, content []byte) (int, error)
}

// SessionStore persists session credentials across restarts.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	Load(ctx context.Context, sessionID string) (domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// ProfileStore holds customer profiles for the lifetime of the process.
type ProfileStore interface {
	Update(customerID string, fn func(*domain.CustomerProfile))
	Get(customerID string) (domain.CustomerProfile, bool)
	List() []domain.CustomerProfile
	BindFolder(folderID, customerID string)
	CustomerForFolder(folderID string) (string, bool)
}

// AnalysisJobRepository persists asynchronous analysis job state.
type AnalysisJobRepository interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.AnalysisState, errMessage string) error
	SetPages(ctx context.Context, id string, pages int) error
}

// AnalysisQueue publishes/consumes analysis job events.
type AnalysisQueue interface {
	PublishAnalysisRequested(ctx context.Context, jobID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// LedgerExporter renders a ledger into a downloadable workbook.
type LedgerExporter interface {
	Export(ledger domain.Ledger) ([]byte, error)
}
