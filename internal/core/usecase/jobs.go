package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

// finalStatusTimeout bounds the terminal status write, which runs after the
// job context may already be done.
const finalStatusTimeout = 5 * time.Second

// AnalysisJobUseCase runs analyses in the background. The API side enqueues
// jobs and the worker side processes them by id. Results land in the client's
// ledger; profiles are folded from the ledger by the process that serves them.
type AnalysisJobUseCase struct {
	repo     ports.AnalysisJobRepository
	queue    ports.AnalysisQueue
	sessions *SessionService
	analysis *AnalysisUseCase
	newID    func() string
	now      func() time.Time
}

func NewAnalysisJobUseCase(
	repo ports.AnalysisJobRepository,
	queue ports.AnalysisQueue,
	sessions *SessionService,
	analysis *AnalysisUseCase,
) *AnalysisJobUseCase {
	return &AnalysisJobUseCase{
		repo:     repo,
		queue:    queue,
		sessions: sessions,
		analysis: analysis,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (uc *AnalysisJobUseCase) Enqueue(ctx context.Context, session domain.Session, doc domain.Document) (*domain.AnalysisJob, error) {
	if doc.ID == "" || doc.FolderID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue analysis", errors.New("document id and folder id are required"))
	}
	now := uc.now().UTC()
	job := &domain.AnalysisJob{
		ID:             uc.newID(),
		SessionID:      session.ID,
		ClientFolderID: doc.FolderID,
		DocumentID:     doc.ID,
		FileName:       doc.FileName,
		MimeType:       doc.MimeType,
		Type:           doc.Type,
		Status:         domain.AnalysisSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create analysis job: %w", err)
	}
	if err := uc.queue.PublishAnalysisRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish analysis job: %w", err)
	}
	return job, nil
}

func (uc *AnalysisJobUseCase) GetByID(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	return uc.repo.GetByID(ctx, jobID)
}

func (uc *AnalysisJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.markStatus(ctx, jobID, domain.AnalysisProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, jobID); err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markFinal(ctx, jobID, domain.AnalysisSucceeded, ""); err != nil {
		return fmt.Errorf("set status=succeeded: %w", err)
	}
	return nil
}

func (uc *AnalysisJobUseCase) processPipeline(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch analysis job by id: %w", err)
	}

	session, err := uc.sessions.Restore(ctx, job.SessionID)
	if err != nil {
		return err
	}

	doc := job.Document()
	result, err := uc.analysis.AnalyzeWithProgress(ctx, session.AccessToken, doc, func(state domain.AnalysisState, pages int) {
		if state == domain.AnalysisSubmitted && pages > 0 {
			if err := uc.repo.SetPages(ctx, jobID, pages); err != nil {
				slog.Warn("analysis_job_pages_failed", "job_id", jobID, "error", err)
			}
		}
	})
	if err != nil {
		return uc.invalidateOnReject(ctx, session.ID, err)
	}

	if _, err := uc.analysis.SaveAnalysisResult(ctx, session.AccessToken, job.ClientFolderID, doc, result); err != nil {
		return uc.invalidateOnReject(ctx, session.ID, err)
	}
	return nil
}


func (uc *AnalysisJobUseCase) invalidateOnReject(ctx context.Context, sessionID string, err error) error {
	if domain.IsKind(err, domain.ErrUnauthorized) {
		uc.sessions.Invalidate(ctx, sessionID)
	}
	return err
}

func (uc *AnalysisJobUseCase) markStatus(ctx context.Context, jobID string, status domain.AnalysisState, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, jobID, status, errMessage)
}

// markFinal writes a terminal status. It keeps the job context's values but
// not its deadline, so a job that ran out of time can still be marked failed.
func (uc *AnalysisJobUseCase) markFinal(ctx context.Context, jobID string, status domain.AnalysisState, errMessage string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalStatusTimeout)
	defer cancel()
	return uc.markStatus(ctx, jobID, status, errMessage)
}

func (uc *AnalysisJobUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markFinal(ctx, jobID, domain.AnalysisFailed, processErr.Error())
}
