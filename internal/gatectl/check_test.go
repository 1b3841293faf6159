package gatectl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeGateway mimics the public surface the checker probes.
func fakeGateway(completionStatus int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","service":"infergate","keys_loaded":1}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid API key","code":401}`))
			return
		}
		w.WriteHeader(completionStatus)
		w.Write([]byte(`{"choices":[{"text":"4"}]}`))
	})
	return mux
}

func TestCheckerHappyPath(t *testing.T) {
	srv := httptest.NewServer(fakeGateway(http.StatusOK))
	defer srv.Close()

	c := &checker{base: srv.URL, key: "sk-good", model: "m1", client: srv.Client()}
	if err := c.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestCheckerSkipsAuthWithoutKey(t *testing.T) {
	srv := httptest.NewServer(fakeGateway(http.StatusOK))
	defer srv.Close()

	c := &checker{base: srv.URL, client: srv.Client()}
	if err := c.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestCheckerFailsOnBadCompletion(t *testing.T) {
	srv := httptest.NewServer(fakeGateway(http.StatusInternalServerError))
	defer srv.Close()

	c := &checker{base: srv.URL, key: "sk-good", client: srv.Client()}
	if err := c.run(context.Background()); err == nil {
		t.Fatalf("expected completion failure")
	}
}

func TestCheckerFailsWhenAnonymousAccepted(t *testing.T) {
	// A gateway that forwards anonymous traffic is misconfigured.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"status":"healthy","service":"infergate","keys_loaded":0}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &checker{base: srv.URL, key: "sk-good", client: srv.Client()}
	if err := c.run(context.Background()); err == nil {
		t.Fatalf("expected failure when anonymous requests pass")
	}
}
