// internal/api/client_test.go
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/locshare/locshare/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "") // unlikely to be listening
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestUploadRoster_Success(t *testing.T) {
	var receivedSecret, receivedFilename, receivedNamespace string
	var receivedParticipants, receivedDuration, receivedTag string
	var receivedFileContent []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/rosters/add" {
			t.Errorf("expected path /api/v1/rosters/add, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		err := r.ParseMultipartForm(10 << 20)
		if err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}

		receivedSecret = r.FormValue("secret")
		receivedFilename = r.FormValue("filename")
		receivedNamespace = r.FormValue("namespace")
		receivedParticipants = r.FormValue("participants")
		receivedDuration = r.FormValue("durationSecs")
		receivedTag = r.FormValue("tag")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("failed to get file: %v", err)
		}
		defer file.Close()

		receivedFileContent = make([]byte, 1024)
		n, _ := file.Read(receivedFileContent)
		receivedFileContent = receivedFileContent[:n]

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "mysecret")
	meta := core.UploadMetadata{
		Namespace:    "locshare",
		Participants: 4,
		DurationSecs: 3600.5,
		Tag:          "demo",
	}

	err := c.UploadRoster("roster.geojson", []byte(`{"type":"FeatureCollection","features":[]}`), meta)
	if err != nil {
		t.Fatalf("UploadRoster failed: %v", err)
	}

	if receivedSecret != "mysecret" {
		t.Errorf("expected secret=mysecret, got %s", receivedSecret)
	}
	if receivedFilename != "roster.geojson" {
		t.Errorf("expected filename=roster.geojson, got %s", receivedFilename)
	}
	if receivedNamespace != "locshare" {
		t.Errorf("expected namespace=locshare, got %s", receivedNamespace)
	}
	if receivedParticipants != "4" {
		t.Errorf("expected participants=4, got %s", receivedParticipants)
	}
	if receivedDuration != "3600.500000" {
		t.Errorf("expected durationSecs=3600.500000, got %s", receivedDuration)
	}
	if receivedTag != "demo" {
		t.Errorf("expected tag=demo, got %s", receivedTag)
	}
	if string(receivedFileContent) != `{"type":"FeatureCollection","features":[]}` {
		t.Errorf("unexpected file content '%s'", string(receivedFileContent))
	}
}

func TestUploadRoster_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New(server.URL, "wrong-secret")
	err := c.UploadRoster("roster.geojson", []byte("{}"), core.UploadMetadata{})
	if err == nil {
		t.Error("expected error for 403 response")
	}
}
