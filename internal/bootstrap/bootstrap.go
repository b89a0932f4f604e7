package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/broker-docs/internal/config"
	"github.com/kirillkom/broker-docs/internal/core/ports"
	"github.com/kirillkom/broker-docs/internal/core/usecase"
	"github.com/kirillkom/broker-docs/internal/infrastructure/analysis/docupanda"
	"github.com/kirillkom/broker-docs/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/broker-docs/internal/infrastructure/inspect/pdf"
	"github.com/kirillkom/broker-docs/internal/infrastructure/profile/memory"
	"github.com/kirillkom/broker-docs/internal/infrastructure/queue/nats"
	"github.com/kirillkom/broker-docs/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/broker-docs/internal/infrastructure/resilience"
	sessionredis "github.com/kirillkom/broker-docs/internal/infrastructure/session/redis"
	"github.com/kirillkom/broker-docs/internal/infrastructure/storage/drive"
)

// Observers lets a process attach its own metrics to shared infrastructure.
// Nil fields are ignored.
type Observers struct {
	BreakerStateChange resilience.StateChangeFunc
	InspectedPages     func(pages int)
}

type App struct {
	Config config.Config

	Queue      ports.AnalysisQueue
	Sessions   *usecase.SessionService
	Workspaces ports.WorkspaceProvider
	Jobs       *usecase.AnalysisJobUseCase
	Profiles   ports.ProfileReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, observers Observers) (*App, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg, observers.BreakerStateChange))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	jobRepo := postgres.NewAnalysisJobRepository(db)
	if err := jobRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	sessionStore, err := sessionredis.New(cfg.RedisURL, sessionredis.Options{
		Prefix: cfg.SessionKeyPrefix,
		TTL:    cfg.SessionTTL,
	})
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	driveClient := drive.New(drive.Options{
		APIURL:      cfg.DriveAPIURL,
		UploadURL:   cfg.DriveUploadURL,
		UserInfoURL: cfg.UserInfoURL,
		PageSize:    cfg.DrivePageSize,
		Timeout:     cfg.DriveTimeout,
		Executor:    executor,
	})
	docuPanda := docupanda.New(docupanda.Options{
		BaseURL:  cfg.DocuPandaURL,
		APIKey:   cfg.DocuPandaAPIKey,
		Timeout:  cfg.DocuPandaTimeout,
		Executor: executor,
	})

	var inspector ports.ContentInspector = pdf.New(cfg.AnalysisMaxPages)
	if observers.InspectedPages != nil {
		inspector = observedInspector{next: inspector, observe: observers.InspectedPages}
	}

	clientsUC := usecase.NewClientDirectoryUseCase(driveClient)
	documentsUC := usecase.NewDocumentDirectoryUseCase(driveClient)
	analysisUC := usecase.NewAnalysisUseCase(driveClient, docuPanda, inspector, usecase.AnalysisOptions{
		SchemaID:       cfg.AnalysisSchemaID,
		PollInterval:   cfg.AnalysisPollInterval,
		MaxWait:        cfg.AnalysisMaxWait,
		LedgerFileName: cfg.LedgerFileName,
	})
	profilesUC := usecase.NewProfileUseCase(memory.New())
	sessions := usecase.NewSessionService(driveClient, clientsUC, sessionStore, cfg.RootFolderName)
	jobsUC := usecase.NewAnalysisJobUseCase(jobRepo, queue, sessions, analysisUC)

	registry := usecase.NewWorkspaceRegistry(sessions, usecase.Services{
		Clients:   clientsUC,
		Documents: documentsUC,
		Analysis:  analysisUC,
		Profiles:  profilesUC,
		Jobs:      jobsUC,
		Exporter:  xlsx.New(),
	})

	return &App{
		Config:     cfg,
		Queue:      queue,
		Sessions:   sessions,
		Workspaces: registry,
		Jobs:       jobsUC,
		Profiles:   profilesUC,

		closeFn: func() {
			queue.Close()
			_ = sessionStore.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config, onStateChange resilience.StateChangeFunc) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	if cfg.BreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.BreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	rc.OnStateChange = onStateChange
	return rc
}

type observedInspector struct {
	next    ports.ContentInspector
	observe func(pages int)
}

func (i observedInspector) Inspect(ctx context.Context, mimeType string, content []byte) (int, error) {
	pages, err := i.next.Inspect(ctx, mimeType, content)
	if pages > 0 {
		i.observe(pages)
	}
	return pages, err
}
