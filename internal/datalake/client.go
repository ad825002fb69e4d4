// Package datalake talks to the clinical data lake REST API.
package datalake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"cdl-sync/internal/cdl"
)

// API versions sent in the api-version header.
const (
	ResourceAPIVersion   = "3"
	CredentialAPIVersion = "2"
)

const maxErrorBody = 4096

// Endpoints builds the study's resource URLs from the base URL, organization
// and study.
type Endpoints struct {
	base string
}

var _ cdl.Endpoints = Endpoints{}

// NewEndpoints validates its arguments and returns the URL builder for one study.
func NewEndpoints(baseURL, organizationID, studyID string) (Endpoints, error) {
	if baseURL == "" || organizationID == "" || studyID == "" {
		return Endpoints{}, fmt.Errorf("data lake url, organization and study are required")
	}
	base := strings.TrimRight(baseURL, "/") + "/" +
		url.PathEscape(organizationID) + "/Study/" + url.PathEscape(studyID) + "/"
	return Endpoints{base: base}, nil
}

// StudyURL is the common prefix of every study endpoint.
func (e Endpoints) StudyURL() string { return e.base }

func (e Endpoints) PatientRoster() string { return e.base + "Fhir/Patient" }

func (e Endpoints) DataCollections(patient string) string {
	q := url.Values{"patient": {patient}}
	return e.base + "Data/DataCollection?" + q.Encode()
}

func (e Endpoints) DataObjects(patient, collectionID string) string {
	// Parameter order matters to some gateways; url.Values would sort it.
	return e.base + "Data/DataObject?patient=" + url.QueryEscape(patient) +
		"&collectionId=" + url.QueryEscape(collectionID) + "&page=0"
}

func (e Endpoints) DownloadCredential() string { return e.base + "DownloadCredential" }

// Client issues authenticated requests against the data lake. The supplied
// http.Client is expected to add the bearer token, typically one built with
// oauth2.NewClient.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	logger     cdl.Logger
}

var _ cdl.PageReader = (*Client)(nil)

// NewClient creates a Client.
func NewClient(httpClient *http.Client, endpoints Endpoints, logger cdl.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		endpoints:  endpoints,
		logger:     logger,
	}
}

// ReadPage performs a GET against a paginated endpoint. Non-200 responses are
// reported through the status with a nil page.
func (c *Client) ReadPage(ctx context.Context, rawURL string) (int, *cdl.Page, error) {
	resp, err := c.get(ctx, rawURL, ResourceAPIVersion)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logUnexpected(resp, rawURL)
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}
	page, err := cdl.DecodePage(body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, page, nil
}

// FetchStorageCredential requests a fresh object storage credential.
func (c *Client) FetchStorageCredential(ctx context.Context) (*cdl.StorageCredential, error) {
	u := c.endpoints.DownloadCredential()
	resp, err := c.get(ctx, u, CredentialAPIVersion)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logUnexpected(resp, u)
		return nil, &cdl.StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	var cred cdl.StorageCredential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, fmt.Errorf("decoding storage credential: %w", err)
	}
	if cred.AccessKey == "" || cred.BaseLocation == "" {
		return nil, fmt.Errorf("storage credential response incomplete")
	}
	return &cred, nil
}

func (c *Client) get(ctx context.Context, rawURL, apiVersion string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-version", apiVersion)
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("GET", "url", rawURL, "request_id", requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp, nil
}

func (c *Client) logUnexpected(resp *http.Response, rawURL string) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Warn("unexpected response status",
		"status", resp.StatusCode,
		"url", rawURL,
		"body", string(body))
}
