package cdl

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"

	"cdl-sync/internal/ndjson"
	"cdl-sync/internal/workspace"
)

const partialSuffix = ".partial"

// MaterializeSummary counts the outcome of artifact materialization.
type MaterializeSummary struct {
	Batches    int
	Downloaded int
	Skipped    int // already present locally
	Ignored    int // unrecognized resource types and unusable keys
}

// storeSession is an object store opened with one storage credential.
type storeSession struct {
	cred        *StorageCredential
	store       ObjectStore
	contentRoot string
}

// MaterializeFiles downloads every artifact referenced by the metadata files
// under the output root. Files that already exist are skipped, so the
// operation is resumable.
//
// Each metadata file is one batch. The storage credential is checked before
// each batch that references recognized artifacts, and the store is only
// reopened when the credential actually changed.
func (s *SyncService) MaterializeFiles(ctx context.Context) (*MaterializeSummary, error) {
	if s.credentials == nil || s.stores == nil {
		return nil, errors.New("object storage not configured")
	}

	files, err := s.workspace.FindMetadataFiles()
	if err != nil {
		return nil, err
	}

	summary := &MaterializeSummary{}
	var session *storeSession
	for _, metadataPath := range files {
		summary.Batches++
		refreshed := false

		for ref, err := range FileReferences(metadataPath) {
			if err != nil {
				return summary, fmt.Errorf("reading %s: %w", metadataPath, err)
			}

			kind := KindOf(ref.ResourceType)
			if kind == ArtifactUnrecognized {
				s.logger.Debug("unrecognized resource type ignored", "type", ref.ResourceType, "dir", ref.PatientDir)
				summary.Ignored++
				continue
			}

			if !refreshed {
				session, err = s.refreshSession(ctx, session)
				if err != nil {
					return summary, err
				}
				refreshed = true
			}

			for _, key := range ref.StorageKeys {
				if err := ctx.Err(); err != nil {
					return summary, err
				}
				switch kind {
				case ArtifactBiosample:
					err = s.materializeBiosample(ctx, session, ref.PatientDir, key, summary)
				case ArtifactImaging:
					err = s.materializeImaging(ctx, session, ref.PatientDir, key, summary)
				}
				if err != nil {
					return summary, err
				}
			}
		}
	}

	s.logger.Info("materialization complete",
		"batches", summary.Batches,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"ignored", summary.Ignored)
	return summary, nil
}

// refreshSession returns cur when the current storage credential still
// matches it, otherwise a store opened with the new credential.
func (s *SyncService) refreshSession(ctx context.Context, cur *storeSession) (*storeSession, error) {
	cred, err := s.credentials.StorageCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting storage credential: %w", err)
	}
	if cur != nil && cur.cred.SameAs(cred) {
		return cur, nil
	}

	_, prefix, err := cred.Location()
	if err != nil {
		return nil, err
	}
	store, err := s.stores.Open(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("opening object store: %w", err)
	}
	s.logger.Debug("object store opened", "location", cred.BaseLocation, "expires", cred.Expiration)
	return &storeSession{cred: cred, store: store, contentRoot: prefix}, nil
}

// materializeBiosample downloads a single object to the patient directory
// under its base name.
func (s *SyncService) materializeBiosample(ctx context.Context, sess *storeSession, patientDir, ref string, summary *MaterializeSummary) error {
	key := ObjectKey(ref, sess.contentRoot)
	name := path.Base(key)
	if name == "." || name == "/" {
		s.logger.Warn("biosample key has no file name", "key", key)
		summary.Ignored++
		return nil
	}
	dest := filepath.Join(patientDir, name)

	ok, err := workspace.Exists(dest)
	if err != nil {
		return err
	}
	if ok {
		summary.Skipped++
		return nil
	}

	s.logger.Info("downloading biosample data", "key", key, "dest", dest)
	if err := download(ctx, sess.store, key, dest+partialSuffix, dest); err != nil {
		return err
	}
	summary.Downloaded++
	return nil
}

// materializeImaging downloads every object below an imaging series prefix
// into the nested layout computed by ImagingPath.
func (s *SyncService) materializeImaging(ctx context.Context, sess *storeSession, patientDir, ref string, summary *MaterializeSummary) error {
	prefix := ObjectKey(ref, sess.contentRoot)
	keys, err := sess.store.ListKeys(ctx, prefix)
	if err != nil {
		return fmt.Errorf("listing %s: %w", prefix, err)
	}

	for _, key := range keys {
		rel, err := ImagingPath(key, sess.contentRoot, s.opts.ImagingMarker)
		if err != nil {
			s.logger.Warn("imaging object skipped", "key", key, "error", err)
			summary.Ignored++
			continue
		}
		dest := filepath.Join(patientDir, rel)

		ok, err := workspace.Exists(dest)
		if err != nil {
			return err
		}
		if ok {
			summary.Skipped++
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("creating series directory: %w", err)
		}

		s.logger.Info("downloading imaging object", "key", key, "dest", dest)
		staged := filepath.Join(patientDir, filepath.Base(rel)+partialSuffix)
		if err := download(ctx, sess.store, key, staged, dest); err != nil {
			return err
		}
		summary.Downloaded++
	}
	return nil
}

// download fetches key into staged and moves it to dest once complete.
func download(ctx context.Context, store ObjectStore, key, staged, dest string) error {
	if err := store.Download(ctx, key, staged); err != nil {
		os.Remove(staged)
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	if err := os.Rename(staged, dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", key, err)
	}
	return nil
}

// FileReferences yields the storage references of every resource in a
// metadata file. Resources without files are not yielded.
func FileReferences(metadataPath string) iter.Seq2[*FileReference, error] {
	dir := filepath.Dir(metadataPath)
	return func(yield func(*FileReference, error) bool) {
		for r, err := range Resources(ndjson.Read[*Page](metadataPath)) {
			if err != nil {
				yield(nil, err)
				return
			}
			if len(r.Files) == 0 {
				continue
			}
			ref := &FileReference{
				PatientDir:   dir,
				ResourceType: r.ResourceType,
				StorageKeys:  r.Files,
			}
			if !yield(ref, nil) {
				return
			}
		}
	}
}
