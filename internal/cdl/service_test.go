package cdl_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/storage"
	"cdl-sync/internal/testutil"
	"cdl-sync/internal/workspace"
)

type fixture struct {
	svc    *cdl.SyncService
	ws     *workspace.Workspace
	reader *testutil.FakePageReader
	clock  *testutil.StubClock
	creds  *testutil.StaticCredentials
	stores *storage.MemoryOpener
}

func newFixture(t *testing.T, reader *testutil.FakePageReader) *fixture {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("workspace.New() error = %v", err)
	}
	f := &fixture{
		ws:     ws,
		reader: reader,
		clock:  testutil.FixedClock(),
		creds:  testutil.NewStaticCredentials("bucket", "org/study/"),
		stores: testutil.NewTestStoreOpener(),
	}
	f.svc = cdl.NewSyncService(reader, testutil.Endpoints{}, ws, f.creds, f.stores, cdl.NewNopLogger(), f.clock, cdl.DefaultOptions())
	return f
}

func patientEntry(id, mrn string) string {
	return fmt.Sprintf(`{"resource":{"resourceType":"Patient","id":%q,"identifier":[{"system":"mrn","value":%q}]}}`, id, mrn)
}

func fileEntry(resourceType string, files ...string) string {
	list := ""
	for i, f := range files {
		if i > 0 {
			list += ","
		}
		list += fmt.Sprintf("%q", f)
	}
	return fmt.Sprintf(`{"resource":{"resourceType":%q,"id":"obj","files":[%s]}}`, resourceType, list)
}

// writeRoster writes a roster file directly, bypassing FetchRoster.
func writeRoster(t *testing.T, ws *workspace.Workspace, mrns ...string) {
	t.Helper()
	content := ""
	for i, m := range mrns {
		content += fmt.Sprintf(`{"id":"p%d","medicalRecordNumber":%q}`+"\n", i+1, m)
	}
	if err := os.WriteFile(ws.RosterPath(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// writeMetadata writes a patient's metadata file with a single page of entries.
func writeMetadata(t *testing.T, ws *workspace.Workspace, mrn string, entries ...string) string {
	t.Helper()
	dir, err := ws.PatientDir(mrn)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	body := `{"entry":[`
	for i, e := range entries {
		if i > 0 {
			body += ","
		}
		body += e
	}
	body += "]}\n"
	if err := os.WriteFile(filepath.Join(dir, workspace.MetadataFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
