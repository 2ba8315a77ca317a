package rddapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/script/v1"
	"google.golang.org/api/sheets/v4"
)

// fakeRootID is what the fake returns for the My Drive root folder.
const fakeRootID = "0AROOT"

type fakeFile struct {
	ID       string
	Name     string
	MimeType string
	Parents  []string
	Trashed  bool
}

// fakeGoogle serves the subset of Drive v3, Sheets v4 and Apps Script v1
// used by the resolvers, backed by an in-memory file table.
type fakeGoogle struct {
	mu     sync.Mutex
	files  map[string]*fakeFile
	nextID int
	calls  []string
	// failures maps a call name to the HTTP status it answers with.
	failures map[string]int
	server   *httptest.Server
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{
		files:    make(map[string]*fakeFile),
		failures: make(map[string]int),
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.serveHTTP))
	t.Cleanup(g.server.Close)
	return g
}

// newTestApp returns an App whose services all talk to g.
func newTestApp(t *testing.T, g *fakeGoogle) *App {
	t.Helper()
	ctx := context.Background()
	opts := func(endpoint string) []option.ClientOption {
		return []option.ClientOption{
			option.WithHTTPClient(g.server.Client()),
			option.WithEndpoint(g.server.URL + endpoint),
		}
	}

	driveService, err := drive.NewService(ctx, opts("/drive/v3/")...)
	require.NoError(t, err)
	sheetsService, err := sheets.NewService(ctx, opts("/")...)
	require.NoError(t, err)
	scriptService, err := script.NewService(ctx, opts("/")...)
	require.NoError(t, err)

	return &App{
		DriveService:  driveService,
		SheetsService: sheetsService,
		ScriptService: scriptService,
		Logger:        slog.New(slog.DiscardHandler),
	}
}

// add seeds a file and returns its ID.
func (g *fakeGoogle) add(name, mimeType string, parents ...string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(name, mimeType, parents)
}

func (g *fakeGoogle) addLocked(name, mimeType string, parents []string) string {
	g.nextID++
	id := fmt.Sprintf("id-%d", g.nextID)
	if len(parents) == 0 {
		parents = []string{fakeRootID}
	}
	g.files[id] = &fakeFile{ID: id, Name: name, MimeType: mimeType, Parents: parents}
	return id
}

func (g *fakeGoogle) file(id string) *fakeFile {
	g.mu.Lock()
	defer g.mu.Unlock()
	f := *g.files[id]
	return &f
}

func (g *fakeGoogle) trash(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[id].Trashed = true
}

func (g *fakeGoogle) failWith(call string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[call] = status
}

// recorded returns the calls received so far and forgets them.
func (g *fakeGoogle) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	calls := g.calls
	g.calls = nil
	return calls
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

var queryPattern = regexp.MustCompile(
	`^name = '((?:[^'\\]|\\.)*)' and mimeType = '([^']*)' and '((?:[^'\\]|\\.)*)' in parents and trashed = false$`)

func unescapeQueryValue(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\'`, `'`).Replace(s)
}

func (g *fakeGoogle) serveHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	call, id := route(r)
	if call == "" {
		http.NotFound(w, r)
		return
	}
	g.calls = append(g.calls, call)

	if status, ok := g.failures[call]; ok {
		writeAPIError(w, status, "injected failure")
		return
	}

	switch call {
	case "drive.list":
		m := queryPattern.FindStringSubmatch(r.URL.Query().Get("q"))
		if m == nil {
			writeAPIError(w, http.StatusBadRequest, "unsupported query")
			return
		}
		name, mimeType, parent := unescapeQueryValue(m[1]), m[2], unescapeQueryValue(m[3])
		if parent == "root" {
			parent = fakeRootID
		}
		var matches []map[string]string
		for _, f := range g.sortedFiles() {
			if f.Name == name && f.MimeType == mimeType && !f.Trashed && slices.Contains(f.Parents, parent) {
				matches = append(matches, map[string]string{"id": f.ID})
			}
		}
		writeJSON(w, map[string]any{"files": matches})

	case "drive.create":
		var body struct {
			Name     string   `json:"name"`
			MimeType string   `json:"mimeType"`
			Parents  []string `json:"parents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, map[string]string{"id": g.addLocked(body.Name, body.MimeType, body.Parents)})

	case "drive.get":
		f, ok := g.files[id]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "File not found: "+id)
			return
		}
		writeJSON(w, map[string]any{"id": f.ID, "parents": f.Parents})

	case "drive.update":
		f, ok := g.files[id]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "File not found: "+id)
			return
		}
		q := r.URL.Query()
		for _, p := range splitNonEmpty(q.Get("removeParents")) {
			f.Parents = slices.DeleteFunc(f.Parents, func(s string) bool { return s == p })
		}
		for _, p := range splitNonEmpty(q.Get("addParents")) {
			if !slices.Contains(f.Parents, p) {
				f.Parents = append(f.Parents, p)
			}
		}
		writeJSON(w, map[string]any{"id": f.ID, "parents": f.Parents})

	case "sheets.create":
		var body struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		newID := g.addLocked(body.Properties.Title, SpreadsheetMimeType, nil)
		writeJSON(w, map[string]any{
			"spreadsheetId": newID,
			"properties":    map[string]string{"title": body.Properties.Title},
		})

	case "script.create":
		var body struct {
			Title    string `json:"title"`
			ParentID string `json:"parentId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.ParentID != "" {
			// a bound project is not a Drive file of its own
			writeAPIError(w, http.StatusBadRequest, "parentId must be a document")
			return
		}
		newID := g.addLocked(body.Title, ScriptMimeType, nil)
		writeJSON(w, map[string]string{"scriptId": newID, "title": body.Title})
	}
}

// sortedFiles returns files in creation order so "first match" is stable.
func (g *fakeGoogle) sortedFiles() []*fakeFile {
	files := make([]*fakeFile, 0, len(g.files))
	for _, f := range g.files {
		files = append(files, f)
	}
	slices.SortFunc(files, func(a, b *fakeFile) int {
		var na, nb int
		fmt.Sscanf(a.ID, "id-%d", &na)
		fmt.Sscanf(b.ID, "id-%d", &nb)
		return na - nb
	})
	return files
}

func route(r *http.Request) (call, id string) {
	switch {
	case r.URL.Path == "/drive/v3/files" && r.Method == http.MethodGet:
		return "drive.list", ""
	case r.URL.Path == "/drive/v3/files" && r.Method == http.MethodPost:
		return "drive.create", ""
	case strings.HasPrefix(r.URL.Path, "/drive/v3/files/") && r.Method == http.MethodGet:
		return "drive.get", strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")
	case strings.HasPrefix(r.URL.Path, "/drive/v3/files/") && r.Method == http.MethodPatch:
		return "drive.update", strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")
	case r.URL.Path == "/v4/spreadsheets" && r.Method == http.MethodPost:
		return "sheets.create", ""
	case r.URL.Path == "/v1/projects" && r.Method == http.MethodPost:
		return "script.create", ""
	}
	return "", ""
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
}
