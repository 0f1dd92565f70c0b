package pagemeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTitleFromPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html><html><head><title>Weekly Report</title></head>` +
			`<body><article><h1>Weekly Report</h1><p>Numbers went up.</p></article></body></html>`))
	}))
	defer ts.Close()

	title, err := Title(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "Weekly Report" {
		t.Errorf("title = %q, want %q", title, "Weekly Report")
	}
}

func TestTitleRefusesNonHTTPSchemes(t *testing.T) {
	for _, u := range []string{"about:config", "file:///etc/passwd", "data:text/html,hi"} {
		if _, err := Title(context.Background(), u); err == nil {
			t.Errorf("Title(%q): expected error", u)
		}
	}
}

func TestTitleReportsHTTPErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := Title(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q does not mention status", err)
	}
}
