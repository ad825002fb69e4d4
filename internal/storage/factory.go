// Package storage implements the object stores study artifacts are read from.
package storage

import (
	"errors"
	"fmt"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/config"
)

// ErrObjectNotFound is returned when a referenced object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// NewStoreOpenerFromConfig creates a StoreOpener based on the storage config type.
func NewStoreOpenerFromConfig(cfg config.StorageConfig) (cdl.StoreOpener, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryOpener(), nil
	case "s3", "":
		region := cfg.Region
		if region == "" {
			region = config.DefaultRegion
		}
		return &S3Opener{
			Region:       region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
