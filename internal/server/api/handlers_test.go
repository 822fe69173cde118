package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codepad/internal/server/config"
	"codepad/internal/server/database"
	"codepad/internal/server/service"
	"codepad/internal/server/storage"
	"codepad/internal/workspace"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*echo.Echo, *service.ProjectService) {
	t.Helper()
	cfg := config.Defaults()
	cfg.RateLimitBurst = 1000
	for _, fn := range mutate {
		fn(cfg)
	}
	store := storage.NewMemoryStore()
	registry := workspace.NewRegistry(store, workspace.Options{SaveTimeout: time.Second})
	svc := service.NewProjectService(store, registry, cfg)
	t.Cleanup(func() { registry.EvictAll(context.Background()) })
	return SetupRouter(NewHandler(svc), NewWorkspaceSocket(svc, cfg.MaxBodyBytes), cfg), svc
}

func do(e *echo.Echo, method, target, body string, header ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createProject(t *testing.T, e *echo.Echo, name, tmpl string) database.Project {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/projects", `{"name":"`+name+`","template":"`+tmpl+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p database.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestProjectsCRUD(t *testing.T) {
	e, _ := newTestServer(t)

	p := createProject(t, e, "site", "html5")
	assert.Equal(t, "site", p.Name)
	assert.Equal(t, []string{"index.html", "script.js", "styles.css"}, p.Files.Names())

	rec := do(e, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []database.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	rec = do(e, http.MethodPatch, "/api/projects/"+p.ID, `{"name":"renamed","description":"d"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated database.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "d", updated.Description)

	rec = do(e, http.MethodGet, "/api/projects/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodDelete, "/api/projects/"+p.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/api/projects/"+p.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "project not found", decodeError(t, rec))
}

func TestCreateProjectValidation(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"  "}`},
		{"too long", `{"name":"` + strings.Repeat("x", 101) + `"}`},
		{"malformed", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/projects", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFilesETag(t *testing.T) {
	e, _ := newTestServer(t)
	p := createProject(t, e, "site", "html5")
	filesURL := "/api/projects/" + p.ID + "/files"

	rec := do(e, http.MethodGet, filesURL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = do(e, http.MethodGet, filesURL, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = do(e, http.MethodPut, filesURL, `{"app.js":{"name":"app.js","type":"file","content":"run()"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Files updated successfully"}`, rec.Body.String())

	rec = do(e, http.MethodGet, filesURL, "", "If-None-Match", etag)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
	assert.JSONEq(t, `{"app.js":{"name":"app.js","type":"file","content":"run()"}}`, rec.Body.String())

	t.Run("invalid tree", func(t *testing.T) {
		rec := do(e, http.MethodPut, filesURL, `{"a":{"name":"b","type":"file"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = do(e, http.MethodPut, filesURL, `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing project", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/projects/nope/files", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPreviewAndAssets(t *testing.T) {
	e, _ := newTestServer(t)
	p := createProject(t, e, "site", "html5")
	base := "/api/projects/" + p.ID

	rec := do(e, http.MethodGet, base+"/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), `href="`+base+`/assets/styles.css"`)

	rec = do(e, http.MethodPut, base+"/files",
		`{"index.html":{"name":"index.html","type":"file","content":"<link href=\"css/site.css\">"},`+
			`"css":{"name":"css","type":"folder","children":{"site.css":{"name":"site.css","type":"file","content":"p{}"}}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodGet, base+"/assets/css/site.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "p{}", rec.Body.String())

	rec = do(e, http.MethodGet, base+"/assets/css", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "folders are not assets")

	rec = do(e, http.MethodGet, base+"/assets/missing.js", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	blank := createProject(t, e, "blank", "blank")
	rec = do(e, http.MethodGet, "/api/projects/"+blank.ID+"/preview", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No index.html found")
}

func TestDownload(t *testing.T) {
	e, _ := newTestServer(t)
	p := createProject(t, e, "shop", "html5")

	rec := do(e, http.MethodGet, "/api/projects/"+p.ID+"/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="shop.zip"`, rec.Header().Get(echo.HeaderContentDisposition))

	body := rec.Body.Bytes()
	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"index.html", "script.js", "styles.css"}, names)
}

func TestWorkspaceIntents(t *testing.T) {
	e, _ := newTestServer(t)
	p := createProject(t, e, "site", "html5")
	base := "/api/projects/" + p.ID + "/workspace"

	rec := do(e, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap workspace.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, p.ID, snap.ProjectID)
	assert.Equal(t, "index.html", snap.Session.ActiveTab)

	rec = do(e, http.MethodPost, base+"/intents", `{"op":"createFolder","name":"src"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(e, http.MethodPost, base+"/intents", `{"op":"createFile","parent":"src","name":"app.js","content":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(e, http.MethodPost, base+"/intents", `{"op":"open","path":"src/app.js"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, []string{"index.html", "src/app.js"}, snap.Session.OpenTabs)
	assert.Equal(t, "src/app.js", snap.Session.ActiveTab)

	rec = do(e, http.MethodPost, base+"/intents", `{"op":"rename","path":"src","name":"lib"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, []string{"index.html", "lib/app.js"}, snap.Session.OpenTabs)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"duplicate name", `{"op":"rename","path":"lib","name":"index.html"}`, http.StatusConflict},
		{"activate closed tab", `{"op":"activate","path":"styles.css"}`, http.StatusConflict},
		{"missing path", `{"op":"delete","path":"nope"}`, http.StatusNotFound},
		{"invalid name", `{"op":"createFile","name":"a/b"}`, http.StatusBadRequest},
		{"unknown op", `{"op":"explode"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, base+"/intents", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec = do(e, http.MethodGet, base, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, []string{"index.html", "lib", "script.js", "styles.css"}, snap.Tree.Names())

	rec = do(e, http.MethodGet, "/api/projects/nope/workspace", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	e, _ := newTestServer(t)
	createProject(t, e, "site", "html5")

	rec := do(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","storage":"connected","workspaces":0}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["total_projects"])
	assert.Equal(t, float64(3), stats["total_files"])

	rec = do(e, http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"html5"`)

	rec = do(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "codepad_http_requests_total")
}

func TestRateLimitOnWrites(t *testing.T) {
	e, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})

	rec := do(e, http.MethodPost, "/api/projects", `{"name":"one"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = do(e, http.MethodPost, "/api/projects", `{"name":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(e, http.MethodGet, "/api/projects", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeBytes(tt.in))
	}
}
