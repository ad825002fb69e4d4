package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/config"
	"cdl-sync/internal/credcache"
	"cdl-sync/internal/database"
	"cdl-sync/internal/datalake"
	"cdl-sync/internal/identity"
	"cdl-sync/internal/storage"
	"cdl-sync/internal/workspace"
)

// CDLApp is the application layer between the CLI and SyncService.
// It constructs all dependencies from config, journals data commands in the
// run history and manages the DB lifecycle on Close.
//
// The data lake connection is established lazily by the data commands, so
// commands like history work without identity settings.
type CDLApp struct {
	cfg          *config.Config
	ws           *workspace.Workspace
	history      cdl.RunHistory
	stores       cdl.StoreOpener
	bearerTokens *credcache.Cache[*cdl.BearerToken]
	storageCreds *credcache.Cache[*cdl.StorageCredential]
	logger       cdl.Logger
	clock        cdl.Clock
	runID        string
	op           *SyncOperation
	logFile      *os.File
	service      *cdl.SyncService
}

// NewCDLApp creates a CDLApp from the given config.
// operation identifies the CLI command being run (e.g. "patients", "files").
// The caller must call Close when done.
func NewCDLApp(cfg *config.Config, operation string, verbose bool) (*CDLApp, error) {
	ws, err := workspace.New(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	stores, err := storage.NewStoreOpenerFromConfig(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	runID := uuid.NewString()
	sl, logFile, err := newLogger(cfg.LogDir, runID, verbose)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}
	clock := cdl.RealClock{}

	params := Parameters(
		"organization", cfg.DataLake.OrganizationID,
		"study", cfg.DataLake.StudyID,
	)

	return &CDLApp{
		cfg:          cfg,
		ws:           ws,
		history:      db,
		stores:       stores,
		bearerTokens: credcache.New[*cdl.BearerToken](ws.BearerTokenPath(), identity.TokenMargin, clock, logger),
		storageCreds: credcache.New[*cdl.StorageCredential](ws.StorageCredentialPath(), 0, clock, logger),
		logger:       logger,
		clock:        clock,
		runID:        runID,
		op:           NewSyncOperation(operation, params, clock.Now()),
		logFile:      logFile,
	}, nil
}

// RunID identifies this invocation in the log.
func (a *CDLApp) RunID() string { return a.runID }

// OutputDir returns the absolute output root.
func (a *CDLApp) OutputDir() string { return a.ws.Root() }

// connect authenticates and wires the sync service. Authentication happens
// before any data request, so bad credentials fail fast.
func (a *CDLApp) connect(ctx context.Context) (*cdl.SyncService, error) {
	if a.service != nil {
		return a.service, nil
	}

	timeout, err := a.cfg.Timeout()
	if err != nil {
		return nil, err
	}
	pacing, err := a.cfg.PacingDelay()
	if err != nil {
		return nil, err
	}

	endpoints, err := datalake.NewEndpoints(a.cfg.DataLake.URL, a.cfg.DataLake.OrganizationID, a.cfg.DataLake.StudyID)
	if err != nil {
		return nil, err
	}

	baseClient := &http.Client{Timeout: timeout}
	idClient, err := identity.NewClient(identity.Config{
		BaseURL:        a.cfg.Identity.URL,
		ClientID:       a.cfg.Identity.ClientID,
		ClientSecret:   a.cfg.Identity.ClientSecret,
		Username:       a.cfg.Identity.Username,
		Password:       a.cfg.Identity.Password,
		PromptPassword: passwordPrompt(a.cfg.Identity.Username, os.Stderr),
		HTTPClient:     baseClient,
	})
	if err != nil {
		return nil, err
	}

	tokens := identity.NewTokenSource(ctx, idClient, a.bearerTokens)
	if _, err := tokens.BearerToken(ctx); err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, baseClient), tokens)
	httpClient.Timeout = timeout

	lake := datalake.NewClient(httpClient, endpoints, a.logger)
	creds := datalake.NewCachedStorageCredentials(lake, a.storageCreds)

	a.service = cdl.NewSyncService(lake, endpoints, a.ws, creds, a.stores, a.logger, a.clock, cdl.Options{
		PacingDelay:   pacing,
		ImagingMarker: a.cfg.Sync.ImagingMarker,
	})
	a.logger.Info("connected", "study", endpoints.StudyURL())
	return a.service, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// Only data commands call this.
func (a *CDLApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	run, err := a.history.CreateRun(a.op.Operation, a.op.Parameters, a.op.StartedAt)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = run.ID
	return nil
}

// track journals a data command and records its outcome on the operation.
func (a *CDLApp) track(ctx context.Context, fn func(svc *cdl.SyncService) (int, error)) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	svc, err := a.connect(ctx)
	if err != nil {
		a.op.Fail()
		return err
	}
	n, err := fn(svc)
	a.op.Items += n
	if err != nil {
		a.op.Fail()
		return err
	}
	return nil
}

// FetchRoster refreshes the patient roster.
func (a *CDLApp) FetchRoster(ctx context.Context) ([]cdl.PatientRecord, error) {
	var roster []cdl.PatientRecord
	err := a.track(ctx, func(svc *cdl.SyncService) (int, error) {
		var err error
		roster, err = svc.FetchRoster(ctx)
		return len(roster), err
	})
	return roster, err
}

// SyncMetadata downloads the metadata of every roster patient not yet synced.
func (a *CDLApp) SyncMetadata(ctx context.Context) (*cdl.SyncSummary, error) {
	var summary *cdl.SyncSummary
	err := a.track(ctx, func(svc *cdl.SyncService) (int, error) {
		var err error
		summary, err = svc.SyncMetadata(ctx)
		if summary == nil {
			return 0, err
		}
		return summary.Synced, err
	})
	return summary, err
}

// MaterializeFiles downloads every referenced artifact not yet present.
func (a *CDLApp) MaterializeFiles(ctx context.Context) (*cdl.MaterializeSummary, error) {
	var summary *cdl.MaterializeSummary
	err := a.track(ctx, func(svc *cdl.SyncService) (int, error) {
		var err error
		summary, err = svc.MaterializeFiles(ctx)
		if summary == nil {
			return 0, err
		}
		return summary.Downloaded, err
	})
	return summary, err
}

// SyncReport collects the results of a full sync.
type SyncReport struct {
	Patients int
	Metadata *cdl.SyncSummary
	Files    *cdl.MaterializeSummary
}

// Sync runs roster, metadata and file phases in order, stopping at the first failure.
func (a *CDLApp) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	roster, err := a.FetchRoster(ctx)
	if err != nil {
		return report, err
	}
	report.Patients = len(roster)

	if report.Metadata, err = a.SyncMetadata(ctx); err != nil {
		return report, err
	}
	if report.Files, err = a.MaterializeFiles(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// GetHistory returns the most recent operations.
func (a *CDLApp) GetHistory(limit int) ([]*cdl.Run, error) {
	return a.history.ListRuns(limit)
}

// ClearCache removes both persisted credentials.
func (a *CDLApp) ClearCache() error {
	if err := a.bearerTokens.Invalidate(); err != nil {
		return err
	}
	if err := a.storageCreds.Invalidate(); err != nil {
		return err
	}
	a.logger.Info("credential cache cleared")
	return nil
}

// Close finalizes the operation and closes all resources.
func (a *CDLApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.history.FinishRun(a.op.ID, a.op.Status, a.op.Items, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
		a.logger.Info("operation finished",
			"operation", a.op.Operation,
			"status", a.op.Status,
			"items", a.op.Items,
			"elapsed", a.clock.Now().Sub(a.op.StartedAt).Round(time.Millisecond))
	}

	if err := a.history.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
