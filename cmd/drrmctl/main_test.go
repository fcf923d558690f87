package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drrm-api/internal/mapstate"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const hallKML = `<kml><Document><Placemark><name>Hall</name>
<Point><coordinates>123.7437,13.1391</coordinates></Point></Placemark></Document></kml>`

func TestKMLInspect(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "hall.kml", hallKML)
	bad := writeFile(t, dir, "notes.txt", "x")

	out, err := run(t, "kml", "inspect", good, bad)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"hall.kml", mapstate.Palette[0], "error: notes.txt is not a KML file", "viewport: 13.13910,123.74370 z19"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestKMLInspectJSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "hall.kml", hallKML)

	out, err := run(t, "kml", "inspect", "--fit", "none", "--json", good)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var res mapstate.UploadResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(res.Added) != 1 || res.Fitted || res.Viewport == nil || res.Viewport.Zoom != 13 {
		t.Errorf("result = %+v", res)
	}
}

func TestKMLInspectNeedsFiles(t *testing.T) {
	if _, err := run(t, "kml", "inspect"); err == nil {
		t.Error("expected error without files")
	}
}

func TestPageCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"page":{"id":2,"type":"admin","title":"Admin","content":"Staff only"}}`))
	}))
	defer srv.Close()

	out, err := run(t, "page", "admin", "--api", srv.URL)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if !strings.Contains(out, "# Admin") || !strings.Contains(out, "source: database") || !strings.Contains(out, "Staff only") {
		t.Errorf("output = %q", out)
	}
}

func TestPageSetRequiresFile(t *testing.T) {
	if _, err := run(t, "page", "set", "login"); err == nil || !strings.Contains(err.Error(), "--file") {
		t.Errorf("err = %v", err)
	}
}
