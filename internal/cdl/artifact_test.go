package cdl_test

import (
	"path/filepath"
	"testing"

	"cdl-sync/internal/cdl"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		resourceType string
		want         cdl.ArtifactKind
	}{
		{"ReimagineBiosamplesData", cdl.ArtifactBiosample},
		{"reimaginebiosamplesdata", cdl.ArtifactBiosample},
		{"Dicom", cdl.ArtifactImaging},
		{"DICOM", cdl.ArtifactImaging},
		{"Observation", cdl.ArtifactUnrecognized},
		{"", cdl.ArtifactUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.resourceType, func(t *testing.T) {
			if got := cdl.KindOf(tt.resourceType); got != tt.want {
				t.Errorf("KindOf(%q) = %v, want %v", tt.resourceType, got, tt.want)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		root string
		want string
	}{
		{name: "already relative", ref: "org/study/a.csv", root: "org/study/", want: "org/study/a.csv"},
		{name: "full url", ref: "s3://bucket/org/study/a.csv", root: "org/study/", want: "org/study/a.csv"},
		{name: "https url", ref: "https://bucket.s3.amazonaws.com/org/study/a.csv", root: "org/study/", want: "org/study/a.csv"},
		{name: "root missing, url", ref: "s3://bucket/other/a.csv", root: "org/study/", want: "other/a.csv"},
		{name: "root missing, path", ref: "/other/a.csv", root: "org/study/", want: "other/a.csv"},
		{name: "no root", ref: "org/a.csv", want: "org/a.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cdl.ObjectKey(tt.ref, tt.root); got != tt.want {
				t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.ref, tt.root, got, tt.want)
			}
		})
	}
}

func TestImagingPath(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		root    string
		want    string
		wantErr bool
	}{
		{
			name: "namespace token removed",
			key:  "org/study/urn:oid:1.2.3/DICOM/series1/IMG001.dcm",
			root: "org/study/",
			want: "1.2.3/series1/IMG001.dcm",
		},
		{
			name: "file directly below marker",
			key:  "org/study/urn:oid:9/DICOM/a.dcm",
			root: "org/study/",
			want: "9/a.dcm",
		},
		{
			name: "nested series",
			key:  "org/study/urn:oid:9/DICOM/s1/e2/a.dcm",
			root: "org/study/",
			want: "9/s1/e2/a.dcm",
		},
		{
			name: "no head",
			key:  "org/study/DICOM/s1/a.dcm",
			root: "org/study/",
			want: "s1/a.dcm",
		},
		{
			name: "root embedded in longer reference",
			key:  "s3://bucket/org/study/urn:oid:4/DICOM/s/a.dcm",
			root: "org/study/",
			want: "4/s/a.dcm",
		},
		{
			name:    "marker absent",
			key:     "org/study/urn:oid:1/images/a.dcm",
			root:    "org/study/",
			wantErr: true,
		},
		{
			name:    "marker inside a segment",
			key:     "org/study/urn:oid:1/XDICOM/a.dcm",
			root:    "org/study/",
			wantErr: true,
		},
		{
			name:    "directory key",
			key:     "org/study/urn:oid:1/DICOM/s1/",
			root:    "org/study/",
			wantErr: true,
		},
		{
			name:    "escaping key",
			key:     "org/study/../../DICOM/../../a.dcm",
			root:    "org/study/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cdl.ImagingPath(tt.key, tt.root, cdl.DefaultImagingMarker)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ImagingPath(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if !tt.wantErr && got != filepath.FromSlash(tt.want) {
				t.Errorf("ImagingPath(%q) = %q, want %q", tt.key, got, filepath.FromSlash(tt.want))
			}
		})
	}
}
