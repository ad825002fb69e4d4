package cdl_test

import (
	"encoding/json"
	"testing"
	"time"

	"cdl-sync/internal/cdl"
)

func TestPage_PreservesBody(t *testing.T) {
	body := `{"resourceType":"Bundle","total":1,"link":[],"entry":[{"resource":{"id":"x","extra":{"k":1}}}]}`

	page, err := cdl.DecodePage([]byte(body))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}
	out, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != body {
		t.Errorf("Marshal() = %s, want %s", out, body)
	}
}

func TestPage_Next(t *testing.T) {
	tests := []struct {
		name   string
		links  []cdl.Link
		want   string
		wantOK bool
	}{
		{name: "no links"},
		{name: "no next", links: []cdl.Link{{Relation: "self", URL: "a"}}},
		{name: "one next", links: []cdl.Link{{Relation: "next", URL: "b"}}, want: "b", wantOK: true},
		{name: "last next wins", links: []cdl.Link{{Relation: "next", URL: "b"}, {Relation: "next", URL: "c"}}, want: "c", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &cdl.Page{Links: tt.links}
			got, ok := p.Next()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Next() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStorageCredential_Location(t *testing.T) {
	tests := []struct {
		base       string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{base: "s3://bucket/org/study/", wantBucket: "bucket", wantPrefix: "org/study/"},
		{base: "s3://bucket", wantBucket: "bucket"},
		{base: "org/study/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			c := &cdl.StorageCredential{BaseLocation: tt.base}
			bucket, prefix, err := c.Location()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Location() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || prefix != tt.wantPrefix {
				t.Errorf("Location() = %q, %q, want %q, %q", bucket, prefix, tt.wantBucket, tt.wantPrefix)
			}
		})
	}
}

func TestStorageCredential_UnmarshalExpiration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", value: `"2024-01-15T11:30:00Z"`, want: time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC)},
		{name: "with offset", value: `"2024-01-15T12:30:00+01:00"`, want: time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC)},
		{name: "no zone is utc", value: `"2024-01-15T11:30:00"`, want: time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC)},
		{name: "fractional no zone", value: `"2024-01-15T11:30:00.250"`, want: time.Date(2024, 1, 15, 11, 30, 0, 250_000_000, time.UTC)},
		{name: "space separator", value: `"2024-01-15 11:30:00"`, want: time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC)},
		{name: "missing", value: `null`},
		{name: "garbage", value: `"tomorrow"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"accessKey":"AK","secretKey":"SK","sessionToken":"ST","baseLocation":"s3://b/p/","expiration":` + tt.value + `}`
			var c cdl.StorageCredential
			err := json.Unmarshal([]byte(body), &c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !c.Expiration.Equal(tt.want) {
				t.Errorf("Expiration = %v, want %v", c.Expiration, tt.want)
			}
			if c.AccessKey != "AK" || c.SessionToken != "ST" || c.BaseLocation != "s3://b/p/" {
				t.Errorf("other fields not decoded: %+v", c)
			}
		})
	}

	t.Run("round trip", func(t *testing.T) {
		in := &cdl.StorageCredential{AccessKey: "AK", Expiration: time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC)}
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var out cdl.StorageCredential
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !out.SameAs(in) {
			t.Errorf("round trip = %+v, want %+v", out, in)
		}
	})
}

func TestStorageCredential_SameAs(t *testing.T) {
	exp := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	a := &cdl.StorageCredential{AccessKey: "AK", SessionToken: "ST", BaseLocation: "s3://b/p/", Expiration: exp}
	b := *a
	c := *a
	c.SessionToken = "ST2"

	if !a.SameAs(&b) {
		t.Error("identical credentials should be the same")
	}
	if a.SameAs(&c) {
		t.Error("credentials with different session tokens should differ")
	}
	if a.SameAs(nil) {
		t.Error("credential should differ from nil")
	}
}

func TestBearerToken_Expiry(t *testing.T) {
	if !(&cdl.BearerToken{}).Expiry().IsZero() {
		t.Error("token without expires_at should have zero expiry")
	}
	tok := &cdl.BearerToken{ExpiresAt: 1705314600}
	if got := tok.Expiry().UTC(); !got.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("Expiry() = %v", got)
	}
}
