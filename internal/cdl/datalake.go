package cdl

import "context"

// PageReader issues a single read against a paginated endpoint.
// A non-200 status is reported through status with a nil page and nil error;
// err is reserved for transport and decoding failures.
type PageReader interface {
	ReadPage(ctx context.Context, url string) (status int, page *Page, err error)
}

// Endpoints builds the URLs of the study's resource collections.
type Endpoints interface {
	// PatientRoster is the study's Patient collection.
	PatientRoster() string

	// DataCollections lists the data collections of a patient.
	DataCollections(patient string) string

	// DataObjects lists the data objects of a patient within one collection,
	// starting at the first page.
	DataObjects(patient, collectionID string) string
}

// StorageCredentialSource yields a storage credential valid at the time of the call.
type StorageCredentialSource interface {
	StorageCredential(ctx context.Context) (*StorageCredential, error)
}
