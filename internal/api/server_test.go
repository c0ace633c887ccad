package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
	"github.com/Ap3pp3rs94/kvrelay/internal/engine/sqlitekv"
	"github.com/Ap3pp3rs94/kvrelay/internal/telemetry"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	store, err := sqlitekv.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := telemetry.New(io.Discard, "kvrelay-test", telemetry.LevelError)
	srv := NewServer(Config{
		DatabaseID:        "11111111-1111-1111-1111-111111111111",
		AccessToken:       "top-secret",
		EphemeralTokenTTL: time.Hour,
	}, store, log, func() bool { return true })

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestBootstrapRequiresAccessToken(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/", "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer header")
	}
}

func TestBootstrapIssuesEphemeralToken(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/", nil)
	req.Header.Set("Authorization", "Bearer top-secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body bootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode bootstrap response: %v", err)
	}
	if body.Token == "" || body.DatabaseID == "" || len(body.Endpoints) != 1 {
		t.Fatalf("unexpected bootstrap body: %+v", body)
	}

	// The ephemeral token just issued must work against a datapath endpoint.
	emptyReq := datapath.EncodeSnapshotRead(datapath.SnapshotRead{})
	dpReq, _ := http.NewRequest(http.MethodPost, ts.URL+"/snapshot_read", bytes.NewReader(emptyReq))
	dpReq.Header.Set("Authorization", "Bearer "+body.Token)
	dpResp, err := http.DefaultClient.Do(dpReq)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer dpResp.Body.Close()
	if dpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from snapshot_read with a fresh ephemeral token, got %d", dpResp.StatusCode)
	}
}

func TestDatapathRejectsMissingEphemeralToken(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/snapshot_read", "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWrongMethodIs405WithAllowHeader(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/snapshot_read")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow: POST header, got %q", resp.Header.Get("Allow"))
	}
}

func TestHealthzAndReadyz(t *testing.T) {
	_, ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("Get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
