package keystore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSourceSchemes(t *testing.T) {
	if src, _ := NewSource("file:/etc/keys.json", "x"); src.(*FileSource).Path != "/etc/keys.json" {
		t.Fatalf("file scheme: %+v", src)
	}
	if src, _ := NewSource("/etc/keys.json", "x"); src.(*FileSource).Path != "/etc/keys.json" {
		t.Fatalf("bare path: %+v", src)
	}
	if src, _ := NewSource("https://secrets.example.com/v/latest", "x"); src.(*HTTPSource).URL == "" {
		t.Fatalf("https scheme")
	}
	if src, _ := NewSource("exec:gcloud secrets versions access latest", "x"); src.(*ExecSource).Path != "gcloud" {
		t.Fatalf("exec scheme: %+v", src)
	}
	if _, err := NewSource("", "x"); err == nil {
		t.Fatalf("empty spec must error")
	}
	if _, err := NewSource("exec:   ", "x"); err == nil {
		t.Fatalf("empty exec command must error")
	}
}

func TestExecSourceSubstitutesName(t *testing.T) {
	src, err := NewSource("exec:cat {name}.json", "mykeys")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	es := src.(*ExecSource)
	if es.Path != "cat" || len(es.Args) != 1 || es.Args[0] != "mykeys.json" {
		t.Fatalf("exec source: %s %v", es.Path, es.Args)
	}
}

func TestFileSourceFetch(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "keys.json")
	if err := os.WriteFile(p, []byte(`{"a":"sk-a"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := &FileSource{Path: p}
	b, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(b) != `{"a":"sk-a"}` {
		t.Fatalf("payload=%s", b)
	}
	if _, err := (&FileSource{Path: filepath.Join(d, "missing.json")}).Fetch(context.Background()); err == nil {
		t.Fatalf("missing file must error")
	}
}

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"a":"sk-a"}`))
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL + "/keys"}
	b, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(b) != `{"a":"sk-a"}` {
		t.Fatalf("payload=%s", b)
	}
	if _, err := (&HTTPSource{URL: srv.URL + "/bad"}).Fetch(context.Background()); err == nil {
		t.Fatalf("non-200 must error")
	}
}

func TestExecSourceFetch(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "keys.json")
	if err := os.WriteFile(p, []byte(`{"a":"sk-a"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := &ExecSource{Path: "cat", Args: []string{p}}
	b, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(b) != `{"a":"sk-a"}` {
		t.Fatalf("payload=%s", b)
	}
	if _, err := (&ExecSource{Path: "cat", Args: []string{p + ".missing"}}).Fetch(context.Background()); err == nil {
		t.Fatalf("failing command must error")
	}
}
