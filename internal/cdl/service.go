package cdl

import (
	"time"

	"cdl-sync/internal/workspace"
)

// DefaultPacingDelay is the pause between patients during metadata sync.
const DefaultPacingDelay = 2 * time.Second

// Options tunes the sync behaviour.
type Options struct {
	// PacingDelay is applied between patients whose metadata is fetched,
	// to keep request volume against the data lake API low.
	PacingDelay time.Duration

	// ImagingMarker is the key segment that starts an imaging series path.
	ImagingMarker string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PacingDelay:   DefaultPacingDelay,
		ImagingMarker: DefaultImagingMarker,
	}
}

// SyncService coordinates the three sync phases: roster, per-patient
// metadata and artifact materialization. Phases run strictly one after
// another and never concurrently.
type SyncService struct {
	reader      PageReader
	endpoints   Endpoints
	workspace   *workspace.Workspace
	credentials StorageCredentialSource
	stores      StoreOpener
	logger      Logger
	clock       Clock
	opts        Options
}

// NewSyncService creates a SyncService with the provided dependencies.
// credentials and stores are only needed by MaterializeFiles and may be nil
// for callers that only sync metadata.
func NewSyncService(reader PageReader, endpoints Endpoints, ws *workspace.Workspace, credentials StorageCredentialSource, stores StoreOpener, logger Logger, clock Clock, opts Options) *SyncService {
	if opts.ImagingMarker == "" {
		opts.ImagingMarker = DefaultImagingMarker
	}
	if opts.PacingDelay < 0 {
		opts.PacingDelay = 0
	}
	return &SyncService{
		reader:      reader,
		endpoints:   endpoints,
		workspace:   ws,
		credentials: credentials,
		stores:      stores,
		logger:      logger,
		clock:       clock,
		opts:        opts,
	}
}
