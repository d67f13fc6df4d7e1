package superset

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// recordedRequest is one call received by fakeSuperset
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// fakeSuperset is an in-memory Superset API. Hooks return a non-zero status to
// reject a request.
type fakeSuperset struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	nextID   int

	loginStatus     int
	csrfStatus      int
	rejectDataset   func(body map[string]any) int
	rejectChart     func(body map[string]any) int
	rejectDashboard func(body map[string]any) int
	dashboards      map[int]map[string]any
	charts          map[int]map[string]any
}

func newFakeSuperset(t *testing.T) *fakeSuperset {
	t.Helper()
	f := &fakeSuperset{
		t:          t,
		nextID:     100,
		dashboards: map[int]map[string]any{},
		charts:     map[int]map[string]any{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSuperset) session() *Session {
	return NewSession(SessionConfig{
		BaseURL:  f.server.URL,
		Username: "admin",
		Password: "secret",
	})
}

func (f *fakeSuperset) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			f.t.Errorf("invalid JSON body for %s %s: %v", r.Method, r.URL.Path, err)
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query().Get("q"),
		Header: r.Header.Clone(),
		Body:   body,
	})
	f.mu.Unlock()

	authed := r.Header.Get("Authorization") == "Bearer access-123"

	switch {
	case r.Method == http.MethodPost && r.URL.Path == loginPath:
		if f.loginStatus != 0 {
			writeJSON(w, f.loginStatus, map[string]any{"message": "Not authorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "access-123", "refresh_token": "refresh-123"})

	case r.Method == http.MethodGet && r.URL.Path == csrfTokenPath:
		if !authed {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Missing Authorization Header"})
			return
		}
		if f.csrfStatus != 0 {
			writeJSON(w, f.csrfStatus, map[string]any{"message": "csrf failure"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": "csrf-456"})

	case !authed:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Missing Authorization Header"})

	case r.Method == http.MethodPost && r.URL.Path == datasetPath:
		if f.rejectDataset != nil {
			if status := f.rejectDataset(body); status != 0 {
				writeJSON(w, status, map[string]any{"message": "dataset rejected"})
				return
			}
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": f.newID(), "result": body})

	case r.Method == http.MethodPost && r.URL.Path == chartPath:
		if f.rejectChart != nil {
			if status := f.rejectChart(body); status != 0 {
				writeJSON(w, status, map[string]any{"message": "chart rejected"})
				return
			}
		}
		id := f.newID()
		f.mu.Lock()
		f.charts[id] = map[string]any{"id": id, "slice_name": body["slice_name"], "viz_type": body["viz_type"], "params": body["params"]}
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "result": body})

	case r.Method == http.MethodPost && r.URL.Path == dashboardPath:
		if f.rejectDashboard != nil {
			if status := f.rejectDashboard(body); status != 0 {
				writeJSON(w, status, map[string]any{"message": "dashboard rejected"})
				return
			}
		}
		id := f.newID()
		f.mu.Lock()
		f.dashboards[id] = map[string]any{"id": id, "dashboard_title": body["dashboard_title"], "slug": body["slug"], "position_json": body["position_json"]}
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "result": body})

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, chartPath) && strings.HasSuffix(r.URL.Path, "/data"):
		var id int
		json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, chartPath), "/data")), &id)
		f.mu.Lock()
		_, ok := f.charts[id]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Chart not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": []any{map[string]any{
			"rowcount":  1,
			"data":      []any{map[string]any{"state": "sale", "count": 4}},
			"form_data": body,
		}}})

	case r.Method == http.MethodGet && (r.URL.Path == chartPath || r.URL.Path == dashboardPath):
		f.mu.Lock()
		var items []map[string]any
		source := f.charts
		if r.URL.Path == dashboardPath {
			source = f.dashboards
		}
		for _, item := range source {
			items = append(items, item)
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "result": items})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, chartPath):
		f.getByID(w, r.URL.Path, chartPath, f.charts)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, dashboardPath):
		f.getByID(w, r.URL.Path, dashboardPath, f.dashboards)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
	}
}

func (f *fakeSuperset) getByID(w http.ResponseWriter, path, prefix string, store map[int]map[string]any) {
	var id int
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")), &id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
		return
	}
	f.mu.Lock()
	item, ok := store[id]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "result": item})
}

func (f *fakeSuperset) newID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

// calls returns recorded requests matching method and path
func (f *fakeSuperset) calls(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
