package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/classlens/classlens/internal/classfile"
	"github.com/classlens/classlens/internal/graph"
)

func testSnapshot(t *testing.T) *graph.ScanResult {
	t.Helper()
	g := graph.New()
	recs := []*classfile.ClassRecord{
		{Name: "app.Paintable", IsInterface: true},
		{Name: "app.Widget", Superclass: "java.lang.Object", Interfaces: []string{"app.Paintable"}},
		{Name: "app.Button", Superclass: "app.Widget"},
	}
	for _, rec := range recs {
		if _, err := g.Merge(rec); err != nil {
			t.Fatalf("Merge(%s): %v", rec.Name, err)
		}
	}
	scope, err := graph.NewScope(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	constants := []classfile.FieldConstant{
		{Class: "app.Widget", Field: "VERSION", Kind: classfile.ConstString, Value: "1.0"},
	}
	return graph.Compute(g, scope, constants)
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{Port: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetResult(testSnapshot(t))
	return s
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func decodeQuery(t *testing.T, w *httptest.ResponseRecorder) queryResponse {
	t.Helper()
	var resp queryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestSubclassesEndpoint(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/api/subclasses?name=app.Widget")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	resp := decodeQuery(t, w)
	if resp.Name != "app.Widget" || resp.Count != 1 || resp.Names[0] != "app.Button" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSingleNameMissingParameter(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/subclasses"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNoSnapshotLoaded(t *testing.T) {
	s, err := New(Config{Port: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w := get(t, s, "/api/subclasses?name=app.Widget"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	// Health stays up regardless.
	if w := get(t, s, "/api/health"); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestImplementingMatchModes(t *testing.T) {
	s := testServer(t)

	w := get(t, s, "/api/implementing?name=app.Paintable")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeQuery(t, w)
	if resp.Count != 2 {
		t.Errorf("implementing count = %d, want 2: %v", resp.Count, resp.Names)
	}

	w = get(t, s, "/api/implementing?name=app.Paintable&match=any")
	if w.Code != http.StatusOK {
		t.Fatalf("match=any status = %d", w.Code)
	}

	if w := get(t, s, "/api/implementing?name=app.Paintable&match=some"); w.Code != http.StatusBadRequest {
		t.Errorf("bad match mode status = %d, want 400", w.Code)
	}
	if w := get(t, s, "/api/implementing"); w.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", w.Code)
	}
}

func TestTypesEndpoint(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/api/types")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeQuery(t, w)
	// Three resolved types plus the java.lang.Object placeholder.
	if resp.Count != 4 {
		t.Errorf("types count = %d, want 4: %v", resp.Count, resp.Names)
	}
}

func TestConstantsEndpoint(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/api/constants?field=app.Widget.VERSION")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Constants []classfile.FieldConstant `json:"constants"`
		Count     int                       `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || resp.Constants[0].Field != "VERSION" {
		t.Errorf("response = %+v", resp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats graph.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats.ResolvedTypes != 3 || stats.Constants != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/subclasses?name=app.Widget", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/subclasses", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestSetResultPurgesCache(t *testing.T) {
	s := testServer(t)

	w := get(t, s, "/api/subclasses?name=app.Widget")
	if decodeQuery(t, w).Count != 1 {
		t.Fatal("unexpected initial answer")
	}

	// A new snapshot with a second subclass must not be masked by the
	// cached answer.
	g := graph.New()
	recs := []*classfile.ClassRecord{
		{Name: "app.Widget", Superclass: "java.lang.Object"},
		{Name: "app.Button", Superclass: "app.Widget"},
		{Name: "app.Slider", Superclass: "app.Widget"},
	}
	for _, rec := range recs {
		if _, err := g.Merge(rec); err != nil {
			t.Fatal(err)
		}
	}
	scope, err := graph.NewScope(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.SetResult(graph.Compute(g, scope, nil))

	w = get(t, s, "/api/subclasses?name=app.Widget")
	if got := decodeQuery(t, w).Count; got != 2 {
		t.Errorf("count after snapshot swap = %d, want 2", got)
	}
}
