package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File names inside the output root.
const (
	RosterFile            = "patients.jsonl"
	MetadataFile          = "metadata.json"
	BearerTokenFile       = "bearer_token.json"
	StorageCredentialFile = "storage_credentials.json"
)

// Workspace is the local output tree:
//
//	<root>/
//	  patients.jsonl             (roster, one patient per line)
//	  bearer_token.json          (cached identity token)
//	  storage_credentials.json   (cached storage credential)
//	  <MRN>/
//	    metadata.json            (one response page per line)
//	    <artifacts...>
type Workspace struct {
	root string
}

// New creates the output root if needed and returns a Workspace over it.
func New(root string) (*Workspace, error) {
	if root == "" {
		return nil, fmt.Errorf("output directory not configured")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute output root.
func (w *Workspace) Root() string { return w.root }

func (w *Workspace) RosterPath() string { return filepath.Join(w.root, RosterFile) }

func (w *Workspace) BearerTokenPath() string { return filepath.Join(w.root, BearerTokenFile) }

func (w *Workspace) StorageCredentialPath() string {
	return filepath.Join(w.root, StorageCredentialFile)
}

// PatientDir returns the directory for a medical record number.
// The MRN must be usable as a single path element.
func (w *Workspace) PatientDir(mrn string) (string, error) {
	if mrn == "" || mrn == "." || mrn == ".." || strings.ContainsAny(mrn, `/\`) {
		return "", fmt.Errorf("medical record number %q is not a valid directory name", mrn)
	}
	return filepath.Join(w.root, mrn), nil
}

// MetadataPath returns the metadata file of a patient directory.
func MetadataPath(patientDir string) string {
	return filepath.Join(patientDir, MetadataFile)
}

// FindMetadataFiles returns every metadata file under the root in lexical order.
func (w *Workspace) FindMetadataFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != MetadataFile || !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking output directory: %w", err)
	}
	return paths, nil
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// WriteFileAtomic writes destPath through a temp file in the same directory and
// renames it into place, so readers never observe a partially written file.
func WriteFileAtomic(destPath string, perm fs.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
