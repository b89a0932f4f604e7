package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

const ledgerMimeType = "application/json"

type AnalysisOptions struct {
	SchemaID       string
	PollInterval   time.Duration
	MaxWait        time.Duration
	LedgerFileName string
}

func (o AnalysisOptions) normalize() AnalysisOptions {
	out := o
	if out.SchemaID == "" {
		out.SchemaID = "mortgage_documents"
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 2 * time.Second
	}
	if out.LedgerFileName == "" {
		out.LedgerFileName = "analysis_results.json"
	}
	return out
}

// ProgressFunc observes analysis state transitions. pages is the inspected
// page count, zero when unknown.
type ProgressFunc func(state domain.AnalysisState, pages int)

type AnalysisUseCase struct {
	gateway   ports.StorageGateway
	api       ports.AnalysisAPI
	inspector ports.ContentInspector
	opts      AnalysisOptions
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewAnalysisUseCase(
	gateway ports.StorageGateway,
	api ports.AnalysisAPI,
	inspector ports.ContentInspector,
	opts AnalysisOptions,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		gateway:   gateway,
		api:       api,
		inspector: inspector,
		opts:      opts.normalize(),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (uc *AnalysisUseCase) Analyze(ctx context.Context, token string, doc domain.Document) (domain.AnalysisResult, error) {
	return uc.AnalyzeWithProgress(ctx, token, doc, nil)
}

// AnalyzeWithProgress fetches the document, submits it, polls the remote job
// until it leaves the processing state and returns the parsed result.
func (uc *AnalysisUseCase) AnalyzeWithProgress(ctx context.Context, token string, doc domain.Document, progress ProgressFunc) (domain.AnalysisResult, error) {
	if progress == nil {
		progress = func(domain.AnalysisState, int) {}
	}
	if uc.opts.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.MaxWait)
		defer cancel()
	}

	content, err := uc.gateway.DownloadFile(ctx, token, doc.ID)
	if err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysisFailed, "download document", err)
	}

	pages := 0
	if uc.inspector != nil {
		pages, err = uc.inspector.Inspect(ctx, doc.MimeType, content)
		if err != nil {
			return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysisFailed, "inspect document", err)
		}
	}

	handle, err := uc.api.Submit(ctx, doc.FileName, content)
	if err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysisFailed, "submit document", err)
	}
	progress(domain.AnalysisSubmitted, pages)

	if err := uc.waitForJob(ctx, handle.JobID, func() { progress(domain.AnalysisProcessing, pages) }); err != nil {
		return domain.AnalysisResult{}, err
	}

	standardizationID, err := uc.api.Standardize(ctx, handle.DocumentID, uc.opts.SchemaID)
	if err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysisFailed, "standardize document", err)
	}
	raw, err := uc.api.Standardization(ctx, standardizationID)
	if err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysisFailed, "fetch standardization", err)
	}

	result, err := domain.ParseAnalysisResult(doc.Type, raw, uc.now())
	if err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysisFailed, "parse analysis result", err)
	}
	return result, nil
}

func (uc *AnalysisUseCase) waitForJob(ctx context.Context, jobID string, onProcessing func()) error {
	processingSeen := false
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(uc.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.WrapError(domain.ErrAnalysisFailed, "poll analysis job", ctx.Err())
		case <-timer.C:
		}

		status, err := uc.api.JobStatus(ctx, jobID)
		if err != nil {
			return domain.WrapError(domain.ErrAnalysisFailed, "poll analysis job", err)
		}
		slog.Debug("analysis_poll", "job_id", jobID, "attempt", attempt, "status", status.Status)

		switch status.Status {
		case domain.RemoteStatusError:
			return &domain.AnalysisError{JobID: jobID, Stage: "job", Payload: status.Payload}
		case domain.RemoteStatusProcessing:
			if !processingSeen {
				processingSeen = true
				onProcessing()
			}
		default:
			return nil
		}
	}
}

// SaveAnalysisResult merges one entry into the folder's ledger file and
// writes it back. Saves to the same folder are serialized within the
// process; across processes the last write wins.
func (uc *AnalysisUseCase) SaveAnalysisResult(
	ctx context.Context,
	token, folderID string,
	doc domain.Document,
	result domain.AnalysisResult,
) (domain.LedgerEntry, error) {
	if folderID == "" {
		return domain.LedgerEntry{}, domain.WrapError(domain.ErrInvalidInput, "save analysis result", errors.New("folder id is required"))
	}

	lock := uc.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	file, err := uc.gateway.FindFileByName(ctx, token, folderID, uc.opts.LedgerFileName)
	if err != nil {
		return domain.LedgerEntry{}, domain.WrapError(domain.ErrDirectory, "locate analysis ledger", err)
	}

	ledger := domain.Ledger{}
	if file != nil {
		current, err := uc.readLedger(ctx, token, file.ID)
		if err != nil {
			if domain.IsKind(err, domain.ErrUnauthorized) {
				return domain.LedgerEntry{}, err
			}
			slog.Warn("ledger_read_failed", "folder_id", folderID, "file_id", file.ID, "error", err)
		} else {
			ledger = current
		}
	}

	entry := domain.LedgerEntry{
		DocumentID:   doc.ID,
		FileName:     doc.FileName,
		Type:         doc.Type,
		AnalysisDate: result.AnalysisDate,
		Results:      result,
	}
	ledger[doc.ID] = entry

	payload, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return domain.LedgerEntry{}, domain.WrapError(domain.ErrUpdateFailed, "marshal analysis ledger", err)
	}

	if file != nil {
		if err := uc.gateway.UpdateFileContent(ctx, token, file.ID, ledgerMimeType, payload); err != nil {
			return domain.LedgerEntry{}, domain.WrapError(domain.ErrUpdateFailed, "write analysis ledger", err)
		}
	} else {
		upload := domain.UploadFile{Name: uc.opts.LedgerFileName, MimeType: ledgerMimeType, Content: payload}
		if _, err := uc.gateway.UploadFile(ctx, token, folderID, upload); err != nil {
			return domain.LedgerEntry{}, domain.WrapError(domain.ErrUploadFailed, "create analysis ledger", err)
		}
	}

	slog.Info("ledger_saved", "folder_id", folderID, "document_id", doc.ID, "entries", len(ledger))
	return entry, nil
}

// LoadAnalysisResults returns the folder's ledger, empty when no ledger file
// exists or its content cannot be parsed.
func (uc *AnalysisUseCase) LoadAnalysisResults(ctx context.Context, token, folderID string) (domain.Ledger, error) {
	if folderID == "" {
		return domain.Ledger{}, nil
	}
	file, err := uc.gateway.FindFileByName(ctx, token, folderID, uc.opts.LedgerFileName)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDirectory, "locate analysis ledger", err)
	}
	if file == nil {
		return domain.Ledger{}, nil
	}

	ledger, err := uc.readLedger(ctx, token, file.ID)
	if err != nil {
		if domain.IsKind(err, domain.ErrParse) {
			slog.Warn("ledger_parse_failed", "folder_id", folderID, "file_id", file.ID, "error", err)
			return domain.Ledger{}, nil
		}
		return nil, domain.WrapError(domain.ErrDirectory, "read analysis ledger", err)
	}
	return ledger, nil
}

func (uc *AnalysisUseCase) readLedger(ctx context.Context, token, fileID string) (domain.Ledger, error) {
	raw, err := uc.gateway.DownloadFile(ctx, token, fileID)
	if err != nil {
		return nil, err
	}
	ledger := domain.Ledger{}
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return nil, domain.WrapError(domain.ErrParse, "decode analysis ledger", err)
	}
	if ledger == nil {
		ledger = domain.Ledger{}
	}
	return ledger, nil
}

func (uc *AnalysisUseCase) folderLock(folderID string) *sync.Mutex {
	uc.locksMu.Lock()
	defer uc.locksMu.Unlock()
	lock, ok := uc.locks[folderID]
	if !ok {
		lock = &sync.Mutex{}
		uc.locks[folderID] = lock
	}
	return lock
}
