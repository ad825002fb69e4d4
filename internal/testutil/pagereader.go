package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"cdl-sync/internal/cdl"
)

// Endpoints builds predictable URLs under https://cdl.test/.
type Endpoints struct{}

func (Endpoints) PatientRoster() string { return "https://cdl.test/Fhir/Patient" }

func (Endpoints) DataCollections(patient string) string {
	return "https://cdl.test/Data/DataCollection?patient=" + patient
}

func (Endpoints) DataObjects(patient, collectionID string) string {
	return "https://cdl.test/Data/DataObject?patient=" + patient + "&collectionId=" + collectionID + "&page=0"
}

type fakeResponse struct {
	status int
	body   string
	err    error
}

// FakePageReader serves canned responses by URL and records every request.
// Unknown URLs answer 404.
type FakePageReader struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []string
}

func NewFakePageReader() *FakePageReader {
	return &FakePageReader{responses: make(map[string]fakeResponse)}
}

// Page registers a 200 response with the given JSON body.
func (f *FakePageReader) Page(url, body string) *FakePageReader {
	return f.Status(url, http.StatusOK, body)
}

// Status registers a response with an arbitrary status.
func (f *FakePageReader) Status(url string, status int, body string) *FakePageReader {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = fakeResponse{status: status, body: body}
	return f
}

// Fail registers a transport error for url.
func (f *FakePageReader) Fail(url string, err error) *FakePageReader {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = fakeResponse{err: err}
	return f
}

func (f *FakePageReader) ReadPage(_ context.Context, url string) (int, *cdl.Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, url)
	resp, ok := f.responses[url]
	f.mu.Unlock()

	if !ok {
		return http.StatusNotFound, nil, nil
	}
	if resp.err != nil {
		return 0, nil, resp.err
	}
	if resp.status != http.StatusOK {
		return resp.status, nil, nil
	}
	page, err := cdl.DecodePage([]byte(resp.body))
	if err != nil {
		return resp.status, nil, fmt.Errorf("fake response for %s: %w", url, err)
	}
	return resp.status, page, nil
}

// Requests returns every URL read, in order.
func (f *FakePageReader) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// RequestCount returns how many reads targeted URLs containing substr.
func (f *FakePageReader) RequestCount(substr string) int {
	n := 0
	for _, u := range f.Requests() {
		if strings.Contains(u, substr) {
			n++
		}
	}
	return n
}

// Reset clears the request log.
func (f *FakePageReader) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}
