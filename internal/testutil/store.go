package testutil

import (
	"context"
	"time"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/storage"
)

// NewTestStoreOpener creates an in-memory store opener for testing.
func NewTestStoreOpener() *storage.MemoryOpener {
	return storage.NewMemoryOpener()
}

// StaticCredentials always returns the same storage credential and counts calls.
type StaticCredentials struct {
	Cred  *cdl.StorageCredential
	Calls int
}

// NewStaticCredentials returns credentials for bucket with the given content root.
func NewStaticCredentials(bucket, contentRoot string) *StaticCredentials {
	return &StaticCredentials{
		Cred: &cdl.StorageCredential{
			AccessKey:    "AKIATEST",
			SecretKey:    "secret",
			SessionToken: "session",
			Expiration:   time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
			BaseLocation: "s3://" + bucket + "/" + contentRoot,
		},
	}
}

func (s *StaticCredentials) StorageCredential(context.Context) (*cdl.StorageCredential, error) {
	s.Calls++
	return s.Cred, nil
}
