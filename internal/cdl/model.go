package cdl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NextRelation is the only link relation that continues a collection.
const NextRelation = "next"

// Link is a paging link carried by a response envelope.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// Entry wraps one resource inside a response envelope.
// The resource is kept raw so it can be projected into different shapes.
type Entry struct {
	Resource json.RawMessage `json:"resource"`
}

// Page is one response envelope from a paginated endpoint.
// The original body is preserved and written back verbatim by MarshalJSON,
// so metadata files hold exactly what the server returned.
type Page struct {
	Links   []Link
	Entries []Entry
	raw     json.RawMessage
}

type pageEnvelope struct {
	Link  []Link  `json:"link"`
	Entry []Entry `json:"entry"`
}

// DecodePage parses a response body into a Page.
func DecodePage(body []byte) (*Page, error) {
	p := &Page{}
	if err := p.UnmarshalJSON(body); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) UnmarshalJSON(data []byte) error {
	var env pageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding page: %w", err)
	}
	p.Links = env.Link
	p.Entries = env.Entry
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (p *Page) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	return json.Marshal(pageEnvelope{Link: p.Links, Entry: p.Entries})
}

// Next returns the target of the page's "next" link.
// When several next links are present the last one wins.
func (p *Page) Next() (string, bool) {
	next, found := "", false
	for _, l := range p.Links {
		if l.Relation == NextRelation {
			next, found = l.URL, true
		}
	}
	return next, found
}

// Identifier is a business identifier attached to a resource.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value"`
}

// Resource is the projection of an entry's resource that the sync needs.
// Patients carry identifiers; data objects carry a type and storage keys.
type Resource struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Files        []string     `json:"files,omitempty"`
}

// PatientRecord is one roster line.
// MedicalRecordNumber names the patient's local directory.
type PatientRecord struct {
	ID                  string `json:"id"`
	MedicalRecordNumber string `json:"medicalRecordNumber"`
}

// FileReference lists the storage keys a metadata resource points at.
type FileReference struct {
	PatientDir   string
	ResourceType string
	StorageKeys  []string
}

// BearerToken is the identity provider's access token as persisted on disk.
type BearerToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds; 0 means unknown
}

// Expiry returns the token's expiry time, or the zero time if unknown.
func (t *BearerToken) Expiry() time.Time {
	if t == nil || t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0)
}

// StorageCredential is a short-lived object storage credential.
// BaseLocation has the form s3://bucket/prefix/.
type StorageCredential struct {
	AccessKey    string    `json:"accessKey"`
	SecretKey    string    `json:"secretKey"`
	SessionToken string    `json:"sessionToken"`
	Expiration   time.Time `json:"expiration"`
	BaseLocation string    `json:"baseLocation"`
}

// Layouts accepted for expiration timestamps that carry no zone offset.
// Such timestamps are read as UTC.
var localExpirationLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (c *StorageCredential) UnmarshalJSON(data []byte) error {
	type plain StorageCredential
	var aux struct {
		plain
		Expiration string `json:"expiration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	exp, err := parseExpiration(aux.Expiration)
	if err != nil {
		return err
	}
	*c = StorageCredential(aux.plain)
	c.Expiration = exp
	return nil
}

func parseExpiration(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localExpirationLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing expiration %q: unrecognized timestamp", s)
}

// Expiry returns the credential's expiration time.
func (c *StorageCredential) Expiry() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.Expiration
}

// Location splits BaseLocation into its bucket and key prefix.
// The prefix never starts with a slash.
func (c *StorageCredential) Location() (bucket, prefix string, err error) {
	u, err := url.Parse(c.BaseLocation)
	if err != nil {
		return "", "", fmt.Errorf("parsing base location %q: %w", c.BaseLocation, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("base location %q has no bucket", c.BaseLocation)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// SameAs reports whether two credentials are interchangeable for opening a store.
func (c *StorageCredential) SameAs(o *StorageCredential) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.AccessKey == o.AccessKey &&
		c.SessionToken == o.SessionToken &&
		c.BaseLocation == o.BaseLocation &&
		c.Expiration.Equal(o.Expiration)
}
