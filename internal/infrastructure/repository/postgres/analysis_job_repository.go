package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

type AnalysisJobRepository struct {
	db *sql.DB
}

func NewAnalysisJobRepository(db *sql.DB) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AnalysisJobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024110701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	client_folder_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	pages INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_folder ON analysis_jobs(client_folder_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AnalysisJobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analysis_jobs (
	id, session_id, client_folder_id, document_id, file_name, mime_type, document_type, status, error_message, pages, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		job.ID, job.SessionID, job.ClientFolderID, job.DocumentID, job.FileName, job.MimeType, string(job.Type),
		string(job.Status), job.Error, job.Pages, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis job: %w", err)
	}
	return nil
}

func (r *AnalysisJobRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, session_id, client_folder_id, document_id, file_name, mime_type, document_type, status, error_message, pages, created_at, updated_at
FROM analysis_jobs
WHERE id = $1
`, id)

	var job domain.AnalysisJob
	var docType, status string
	err := row.Scan(
		&job.ID, &job.SessionID, &job.ClientFolderID, &job.DocumentID, &job.FileName, &job.MimeType,
		&docType, &status, &job.Error, &job.Pages, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get analysis job", fmt.Errorf("analysis job %s", id))
		}
		return nil, fmt.Errorf("scan analysis job: %w", err)
	}
	job.Type = domain.DocumentType(docType)
	job.Status = domain.AnalysisState(status)
	return &job, nil
}

func (r *AnalysisJobRepository) UpdateStatus(ctx context.Context, id string, status domain.AnalysisState, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE analysis_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update analysis job status: %w", err)
	}
	return expectOneRow(result, "update analysis job status", id)
}

func (r *AnalysisJobRepository) SetPages(ctx context.Context, id string, pages int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE analysis_jobs
SET pages = $2, updated_at = $3
WHERE id = $1
`, id, pages, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set analysis job pages: %w", err)
	}
	return expectOneRow(result, "set analysis job pages", id)
}

func expectOneRow(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("analysis job %s", id))
	}
	return nil
}
