package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"codepad/internal/core"
	"codepad/internal/server/config"
	"codepad/internal/server/database"
	"codepad/internal/server/storage"
	"codepad/internal/util"
	"codepad/internal/workspace"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound       = errors.New("project not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrInvalidProject = errors.New("invalid project data")
	ErrInvalidTree    = errors.New("invalid file data")
)

const maxNameLength = 100

// CreateProjectRequest is the body of a project creation.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Template    string `json:"template"`
}

// UpdateProjectRequest is the body of a project PATCH. Absent fields are
// left unchanged.
type UpdateProjectRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Files       json.RawMessage `json:"files"`
}

// ProjectService contains the business logic for projects and their files.
type ProjectService struct {
	store    storage.Store
	registry *workspace.Registry
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(store storage.Store, registry *workspace.Registry, cfg *config.Config) *ProjectService {
	return &ProjectService{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   util.GetLogger("service"),
	}
}

// SeedDefault creates the sample project when the store holds none.
func (s *ProjectService) SeedDefault(ctx context.Context) error {
	projects, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) > 0 {
		return nil
	}
	now := time.Now().UTC()
	project := &database.Project{
		ID:          uuid.NewString(),
		Name:        DefaultProjectName,
		Description: "A sample website project",
		Template:    TemplateHTML5,
		Files:       defaultProjectFiles(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, project); err != nil {
		return fmt.Errorf("failed to seed default project: %w", err)
	}
	s.logger.Info().Str("id", project.ID).Str("name", project.Name).Msg("seeded default project")
	return nil
}

// Create validates req and stores a new project built from its template.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*database.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidProject, maxNameLength)
	}
	tmpl := req.Template
	if tmpl == "" {
		tmpl = TemplateBlank
	}

	now := time.Now().UTC()
	project := &database.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		Template:    tmpl,
		Files:       BuildTemplate(tmpl, name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info().
		Str("id", project.ID).
		Str("name", project.Name).
		Str("template", tmpl).
		Msg("project created")
	return project, nil
}

// Get returns a project. The files reflect unsaved edits of a loaded
// workspace.
func (s *ProjectService) Get(ctx context.Context, id string) (*database.Project, error) {
	project, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.overlay(project)
	return project, nil
}

// List returns every project, oldest first.
func (s *ProjectService) List(ctx context.Context) ([]*database.Project, error) {
	projects, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		s.overlay(p)
	}
	if projects == nil {
		projects = []*database.Project{}
	}
	return projects, nil
}

func (s *ProjectService) overlay(p *database.Project) {
	if ws, ok := s.registry.Lookup(p.ID); ok {
		p.Files = ws.Tree()
	}
}

// Update changes project metadata and, when req carries files, replaces
// the whole tree.
func (s *ProjectService) Update(ctx context.Context, id string, req UpdateProjectRequest) (*database.Project, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidProject, maxNameLength)
		}
		req.Name = &name
	}

	var tree *core.Tree
	if len(req.Files) > 0 && string(req.Files) != "null" {
		t, err := DecodeTree(req.Files)
		if err != nil {
			return nil, err
		}
		tree = &t
	}

	project, err := s.store.Update(ctx, id, database.ProjectUpdate{Name: req.Name, Description: req.Description})
	if err != nil {
		return nil, mapStoreError(err)
	}
	if tree != nil {
		if err := s.ReplaceFiles(ctx, id, *tree); err != nil {
			return nil, err
		}
		project.Files = *tree
	} else {
		s.overlay(project)
	}
	return project, nil
}

// Delete removes a project and drops its workspace.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.registry.Evict(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("workspace eviction failed")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	s.logger.Info().Str("id", id).Msg("project deleted")
	return nil
}

// Workspace returns the live workspace of a project, loading it on first use.
func (s *ProjectService) Workspace(ctx context.Context, id string) (*workspace.Workspace, error) {
	ws, err := s.registry.Open(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return ws, nil
}

// Files returns the current tree of a project.
func (s *ProjectService) Files(ctx context.Context, id string) (core.Tree, error) {
	ws, err := s.Workspace(ctx, id)
	if err != nil {
		return core.Tree{}, err
	}
	return ws.Tree(), nil
}

// ReplaceFiles swaps in a whole tree and waits until it is stored.
func (s *ProjectService) ReplaceFiles(ctx context.Context, id string, tree core.Tree) error {
	ws, err := s.Workspace(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ws.ReplaceTree(tree); err != nil {
		return err
	}
	if s.cfg != nil && s.cfg.SaveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SaveTimeout)
		defer cancel()
	}
	return mapStoreError(ws.Flush(ctx))
}

// DecodeTree parses a JSON file tree, wrapping any failure in ErrInvalidTree.
func DecodeTree(data []byte) (core.Tree, error) {
	var tree core.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return core.Tree{}, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	return tree, nil
}

var (
	cssRefPattern = regexp.MustCompile(`href="([^"]+\.css)"`)
	jsRefPattern  = regexp.MustCompile(`src="([^"]+\.js)"`)
)

// Preview returns the project's index.html with relative stylesheet and
// script references pointed at the asset endpoint.
func (s *ProjectService) Preview(ctx context.Context, id string) (string, error) {
	tree, err := s.Files(ctx, id)
	if err != nil {
		return "", err
	}
	index, err := tree.Resolve("index.html")
	if err != nil || index.IsFolder() {
		return "", fmt.Errorf("%w: index.html", ErrFileNotFound)
	}
	return RewriteAssetLinks(index.Content(), id), nil
}

// RewriteAssetLinks points relative .css hrefs and .js srcs of page at the
// asset endpoint of project id. Absolute and rooted URLs are left alone.
func RewriteAssetLinks(page, id string) string {
	prefix := "/api/projects/" + id + "/assets/"
	rewrite := func(attr string) func(string) string {
		return func(m string) string {
			ref := m[len(attr)+2 : len(m)-1]
			if strings.Contains(ref, "://") || strings.HasPrefix(ref, "/") {
				return m
			}
			return attr + `="` + prefix + strings.TrimPrefix(ref, "./") + `"`
		}
	}
	page = cssRefPattern.ReplaceAllStringFunc(page, rewrite("href"))
	return jsRefPattern.ReplaceAllStringFunc(page, rewrite("src"))
}

// Asset returns the content of file p and the content type for its extension.
func (s *ProjectService) Asset(ctx context.Context, id, p string) (content, contentType string, err error) {
	tree, err := s.Files(ctx, id)
	if err != nil {
		return "", "", err
	}
	n, err := tree.Resolve(p)
	if err != nil || n.IsFolder() {
		return "", "", fmt.Errorf("%w: %s", ErrFileNotFound, p)
	}
	return n.Content(), ContentType(p), nil
}

// ContentType picks the response type for a project file.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "text/plain; charset=utf-8"
}

// Download returns the project packed as a ZIP archive and a file name for it.
func (s *ProjectService) Download(ctx context.Context, id string) (data []byte, filename string, err error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err = project.Files.ToZipBytes()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build archive: %w", err)
	}
	s.logger.Info().
		Str("id", id).
		Int("files", len(project.Files.Files())).
		Int("bytes", len(data)).
		Msg("project downloaded")
	return data, sanitizeFilename(project.Name), nil
}

// statsSource is implemented by backends that compute stats themselves.
type statsSource interface {
	GetStats(ctx context.Context) (*database.Stats, error)
}

// GetStats returns aggregate server statistics.
func (s *ProjectService) GetStats(ctx context.Context) (*database.Stats, error) {
	if src, ok := s.store.(statsSource); ok {
		return src.GetStats(ctx)
	}
	projects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &database.Stats{TotalProjects: int64(len(projects))}
	for _, p := range projects {
		stats.TotalFiles += int64(len(p.Files.Files()))
		stats.StorageUsed += p.Files.GetUncompressedSize()
	}
	return stats, nil
}

// healthChecker is implemented by backends with a remote dependency.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck reports the storage backend's health. Backends without a
// check are always healthy.
func (s *ProjectService) HealthCheck(ctx context.Context) error {
	if hc, ok := s.store.(healthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// OpenWorkspaces returns the number of loaded workspaces.
func (s *ProjectService) OpenWorkspaces() int {
	return s.registry.Len()
}

func mapStoreError(err error) error {
	if errors.Is(err, database.ErrProjectNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// sanitizeFilename turns a project name into an archive file name: no
// directory components or quotes, limited length, .zip extension.
func sanitizeFilename(name string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// taking the base name.
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return '_'
		}
		return r
	}, name)

	// Limit length without splitting a multi-byte character.
	if len(name) > 200 {
		n := 200
		for n > 0 && !utf8.RuneStart(name[n]) {
			n--
		}
		name = name[:n]
	}

	if name == "" || name == "." || name == "/" {
		name = "project"
	}

	return name + ".zip"
}
