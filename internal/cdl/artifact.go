package cdl

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ArtifactKind is the closed set of data object types that are materialized.
type ArtifactKind int

const (
	ArtifactUnrecognized ArtifactKind = iota
	ArtifactBiosample
	ArtifactImaging
)

const (
	BiosampleResourceType = "ReimagineBiosamplesData"
	ImagingResourceType   = "Dicom"

	// DefaultImagingMarker starts the series part of an imaging key.
	DefaultImagingMarker = "DICOM/"

	namespaceToken = "urn:oid:"
)

// KindOf maps a resource type to its artifact kind, ignoring case.
func KindOf(resourceType string) ArtifactKind {
	switch {
	case strings.EqualFold(resourceType, BiosampleResourceType):
		return ArtifactBiosample
	case strings.EqualFold(resourceType, ImagingResourceType):
		return ArtifactImaging
	default:
		return ArtifactUnrecognized
	}
}

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactBiosample:
		return "biosample"
	case ArtifactImaging:
		return "imaging"
	default:
		return "unrecognized"
	}
}

// ObjectKey re-roots a storage reference at the content root.
// References usually embed the root somewhere inside a longer URL or path;
// everything before the first occurrence of the root is dropped.
func ObjectKey(ref, contentRoot string) string {
	if contentRoot != "" {
		if i := strings.Index(ref, contentRoot); i >= 0 {
			return ref[i:]
		}
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return strings.TrimPrefix(u.Path, "/")
	}
	return strings.TrimPrefix(ref, "/")
}

// ImagingPath computes where an imaging object lands below the patient
// directory. The key is made relative to contentRoot and split at marker:
// the part before it with namespace tokens removed, followed by the part
// after it.
//
//	org/study/urn:oid:1.2.3/DICOM/series1/IMG001.dcm -> 1.2.3/series1/IMG001.dcm
//
// The marker only matches at the start of a path segment.
func ImagingPath(key, contentRoot, marker string) (string, error) {
	if marker == "" {
		return "", fmt.Errorf("imaging marker not set")
	}

	rel := key
	if contentRoot != "" {
		if i := strings.Index(key, contentRoot); i >= 0 {
			rel = key[i+len(contentRoot):]
		}
	}

	m := strings.Index("/"+rel, "/"+marker)
	if m < 0 {
		return "", fmt.Errorf("key %q does not contain %q", key, marker)
	}

	head := strings.ReplaceAll(rel[:m], namespaceToken, "")
	dir, leaf := path.Split(rel[m+len(marker):])
	if leaf == "" {
		return "", fmt.Errorf("key %q names a directory", key)
	}

	out := filepath.Join(filepath.FromSlash(path.Join(head, dir)), leaf)
	if !filepath.IsLocal(out) {
		return "", fmt.Errorf("key %q escapes the patient directory", key)
	}
	return out, nil
}
