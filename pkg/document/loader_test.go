package document

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openresearch/conductor/internal/testutil"
	"github.com/openresearch/conductor/pkg/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "plain notes")
	writeFile(t, dir, "readme.md", "# markdown")
	writeFile(t, dir, "page.html", "<html><body><p>from html</p></body></html>")
	writeFile(t, dir, "binary.bin", "ignored")

	loader := NewLoader(dir)

	ctx := testutil.NewTestContext(t)
	documents, err := loader.Load(ctx)

	testutil.AssertNoError(t, err, "load directory")
	testutil.AssertEqual(t, 3, len(documents), "supported files only")

	bySource := make(map[string]string)
	for _, doc := range documents {
		bySource[filepath.Base(doc.Source)] = doc.RawContent
	}
	testutil.AssertEqual(t, "plain notes", bySource["notes.txt"], "txt verbatim")
	testutil.AssertEqual(t, "# markdown", bySource["readme.md"], "md verbatim")
	if !strings.Contains(bySource["page.html"], "from html") {
		t.Errorf("expected extracted html text, got %q", bySource["page.html"])
	}
	if strings.Contains(bySource["page.html"], "<p>") {
		t.Errorf("html tags leaked: %q", bySource["page.html"])
	}
}

func TestLoader_LoadsSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "single.txt", "solo")

	loader := NewLoader(path)

	ctx := testutil.NewTestContext(t)
	documents, err := loader.Load(ctx)

	testutil.AssertNoError(t, err, "load single file")
	testutil.AssertEqual(t, 1, len(documents), "one document")
	testutil.AssertEqual(t, "solo", documents[0].RawContent, "content")
	testutil.AssertEqual(t, path, documents[0].Source, "source is the path")
}

func TestLoader_WalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "top.txt", "top")
	writeFile(t, sub, "deep.txt", "deep")

	loader := NewLoader(dir)

	ctx := testutil.NewTestContext(t)
	documents, err := loader.Load(ctx)

	testutil.AssertNoError(t, err, "load recursive")
	testutil.AssertEqual(t, 2, len(documents), "nested file included")
}

func TestLoader_EmptySetIsErrNoDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "skipped.bin", "nope")

	loader := NewLoader(dir)

	ctx := testutil.NewTestContext(t)
	_, err := loader.Load(ctx)

	testutil.AssertError(t, err, "nothing loadable")
	if !errors.Is(err, domain.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestLoader_MissingPathFails(t *testing.T) {
	loader := NewLoader("/does/not/exist")

	ctx := testutil.NewTestContext(t)
	_, err := loader.Load(ctx)

	testutil.AssertError(t, err, "missing path")
}

func TestOnlineLoader_FetchesURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "doc at %s", r.URL.Path)
	}))
	defer server.Close()

	loader := NewOnlineLoader([]string{
		server.URL + "/a",
		server.URL + "/missing",
		server.URL + "/b",
	}, time.Second)

	ctx := testutil.NewTestContext(t)
	documents, err := loader.Load(ctx)

	testutil.AssertNoError(t, err, "load urls")
	testutil.AssertEqual(t, 2, len(documents), "failed url skipped")
	testutil.AssertEqual(t, "doc at /a", documents[0].RawContent, "input order preserved")
}

func TestOnlineLoader_AllFailuresIsErrNoDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	loader := NewOnlineLoader([]string{server.URL + "/a"}, time.Second)

	ctx := testutil.NewTestContext(t)
	_, err := loader.Load(ctx)

	testutil.AssertError(t, err, "all urls failed")
	if !errors.Is(err, domain.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}
