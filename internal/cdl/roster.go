package cdl

import (
	"context"
	"fmt"
	"io"
	"iter"

	"cdl-sync/internal/ndjson"
	"cdl-sync/internal/workspace"
)

// FetchRoster downloads the study's patient collection and overwrites the
// roster file with one record per patient. The roster is always rebuilt from
// scratch; only the per-patient phases are resumable.
func (s *SyncService) FetchRoster(ctx context.Context) ([]PatientRecord, error) {
	s.logger.Info("fetching patient roster")

	pages, err := FetchCollection(ctx, s.reader, s.endpoints.PatientRoster())
	if err != nil {
		return nil, fmt.Errorf("fetching patient roster: %w", err)
	}

	roster, err := RosterFromPages(PagesOf(pages))
	if err != nil {
		return nil, err
	}

	err = workspace.WriteFileAtomic(s.workspace.RosterPath(), 0644, func(w io.Writer) error {
		return ndjson.Encode(w, roster)
	})
	if err != nil {
		return nil, fmt.Errorf("writing roster: %w", err)
	}

	s.logger.Info("patient roster written", "patients", len(roster), "pages", len(pages))
	return roster, nil
}

// RosterFromPages projects every Patient resource in pages into a PatientRecord.
// The first identifier of a resource is taken as its medical record number.
func RosterFromPages(pages iter.Seq2[*Page, error]) ([]PatientRecord, error) {
	var roster []PatientRecord
	for r, err := range Resources(pages) {
		if err != nil {
			return nil, fmt.Errorf("reading patients: %w", err)
		}
		if len(r.Identifier) == 0 {
			return nil, fmt.Errorf("patient %q has no identifier", r.ID)
		}
		roster = append(roster, PatientRecord{
			ID:                  r.ID,
			MedicalRecordNumber: r.Identifier[0].Value,
		})
	}
	return roster, nil
}

// ReadRoster loads the roster written by FetchRoster.
func (s *SyncService) ReadRoster() ([]PatientRecord, error) {
	path := s.workspace.RosterPath()
	ok, err := workspace.Exists(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRosterMissing
	}
	return ndjson.ReadAll[PatientRecord](path)
}
