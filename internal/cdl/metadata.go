package cdl

import (
	"context"
	"fmt"
	"io"
	"os"

	"cdl-sync/internal/ndjson"
	"cdl-sync/internal/workspace"
)

// DefaultCollection is queried for every patient in addition to the
// collections the data lake reports.
const DefaultCollection = "default"

// SyncSummary counts the outcome of a metadata sync.
type SyncSummary struct {
	Synced  int
	Skipped int
}

// SyncMetadata fetches the metadata of every roster patient that has not been
// synced yet, in roster order.
//
// A patient counts as synced once its metadata file exists. The file is
// written to a temp name and renamed only after every collection was fetched,
// so an interrupted patient is fetched again on the next run even though its
// directory already exists.
//
// Any failed fetch aborts the whole run. Work completed for earlier patients
// is kept.
func (s *SyncService) SyncMetadata(ctx context.Context) (*SyncSummary, error) {
	roster, err := s.ReadRoster()
	if err != nil {
		return nil, err
	}

	summary := &SyncSummary{}
	for _, p := range roster {
		dir, err := s.workspace.PatientDir(p.MedicalRecordNumber)
		if err != nil {
			return summary, err
		}

		done, err := workspace.Exists(workspace.MetadataPath(dir))
		if err != nil {
			return summary, err
		}
		if done {
			s.logger.Info("patient metadata already downloaded, skipping", "mrn", p.MedicalRecordNumber)
			summary.Skipped++
			continue
		}

		if summary.Synced > 0 {
			if err := s.clock.Sleep(ctx, s.opts.PacingDelay); err != nil {
				return summary, err
			}
		}

		if err := s.syncPatient(ctx, p.MedicalRecordNumber, dir); err != nil {
			return summary, fmt.Errorf("syncing patient %s: %w", p.MedicalRecordNumber, err)
		}
		summary.Synced++
	}

	s.logger.Info("metadata sync complete", "synced", summary.Synced, "skipped", summary.Skipped)
	return summary, nil
}

// syncPatient fetches all data objects of one patient and commits them as
// the patient's metadata file.
func (s *SyncService) syncPatient(ctx context.Context, mrn, dir string) error {
	s.logger.Info("downloading patient metadata", "mrn", mrn)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating patient directory: %w", err)
	}

	collectionPages, err := FetchCollection(ctx, s.reader, s.endpoints.DataCollections(mrn))
	if err != nil {
		return fmt.Errorf("fetching data collections: %w", err)
	}

	collections := []string{DefaultCollection}
	for r, err := range Resources(PagesOf(collectionPages)) {
		if err != nil {
			return fmt.Errorf("reading data collections: %w", err)
		}
		if r.ID == "" {
			s.logger.Warn("data collection without id ignored", "mrn", mrn)
			continue
		}
		collections = append(collections, r.ID)
	}

	var pages []*Page
	for _, c := range collections {
		objectPages, err := FetchCollection(ctx, s.reader, s.endpoints.DataObjects(mrn, c))
		if err != nil {
			return fmt.Errorf("fetching data objects of collection %s: %w", c, err)
		}
		s.logger.Debug("data objects fetched", "mrn", mrn, "collection", c, "pages", len(objectPages))
		pages = append(pages, objectPages...)
	}

	err = workspace.WriteFileAtomic(workspace.MetadataPath(dir), 0644, func(w io.Writer) error {
		return ndjson.Encode(w, pages)
	})
	if err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	s.logger.Info("patient metadata written", "mrn", mrn, "collections", len(collections), "pages", len(pages))
	return nil
}
