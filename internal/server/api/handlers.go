package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"codepad/internal/core"
	"codepad/internal/server/service"
	"codepad/internal/util"
	"codepad/internal/workspace"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the codepad API.
type Handler struct {
	svc *service.ProjectService
}

// NewHandler creates a new handler with the given service dependency.
func NewHandler(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

// HandleListProjects handles GET /api/projects.
func (h *Handler) HandleListProjects(c echo.Context) error {
	projects, err := h.svc.List(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, projects)
}

// HandleGetProject handles GET /api/projects/:id.
func (h *Handler) HandleGetProject(c echo.Context) error {
	project, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

// HandleCreateProject handles POST /api/projects.
func (h *Handler) HandleCreateProject(c echo.Context) error {
	var req service.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project data"})
	}
	project, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, project)
}

// HandleUpdateProject handles PATCH /api/projects/:id.
func (h *Handler) HandleUpdateProject(c echo.Context) error {
	var req service.UpdateProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid project data"})
	}
	project, err := h.svc.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

// HandleDeleteProject handles DELETE /api/projects/:id.
func (h *Handler) HandleDeleteProject(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetFiles handles GET /api/projects/:id/files.
// The tree digest is sent as ETag; a matching If-None-Match yields 304.
func (h *Handler) HandleGetFiles(c echo.Context) error {
	tree, err := h.svc.Files(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	etag := `"` + tree.Digest() + `"`
	c.Response().Header().Set("ETag", etag)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, tree)
}

// HandlePutFiles handles PUT /api/projects/:id/files.
// The body is a whole file tree; the response is sent once it is stored.
func (h *Handler) HandlePutFiles(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
	}
	tree, err := service.DecodeTree(body)
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := h.svc.ReplaceFiles(c.Request().Context(), c.Param("id"), tree); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Files updated successfully"})
}

const missingIndexPage = "<!DOCTYPE html><html><body><h1>No index.html found</h1></body></html>"

// HandlePreview handles GET /api/projects/:id/preview.
func (h *Handler) HandlePreview(c echo.Context) error {
	page, err := h.svc.Preview(c.Request().Context(), c.Param("id"))
	if errors.Is(err, service.ErrFileNotFound) {
		return c.HTML(http.StatusNotFound, missingIndexPage)
	}
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.HTML(http.StatusOK, page)
}

// HandleAsset handles GET /api/projects/:id/assets/*.
// Nested paths such as css/site.css are resolved against the tree.
func (h *Handler) HandleAsset(c echo.Context) error {
	p := strings.Trim(c.Param("*"), "/")
	content, contentType, err := h.svc.Asset(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Blob(http.StatusOK, contentType, []byte(content))
}

// HandleDownload handles GET /api/projects/:id/download.
func (h *Handler) HandleDownload(c echo.Context) error {
	data, filename, err := h.svc.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "application/zip", data)
}

// HandleTemplates handles GET /api/templates.
func (h *Handler) HandleTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, service.Templates())
}

// HandleGetWorkspace handles GET /api/projects/:id/workspace.
func (h *Handler) HandleGetWorkspace(c echo.Context) error {
	ws, err := h.svc.Workspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, ws.Snapshot())
}

// HandleIntent handles POST /api/projects/:id/workspace/intents.
// One intent is applied and the resulting snapshot returned.
func (h *Handler) HandleIntent(c echo.Context) error {
	var in workspace.Intent
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid intent"})
	}
	ws, err := h.svc.Workspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	snap, err := ws.Apply(in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including storage connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	storageStatus := "connected"

	if err := h.svc.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		storageStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":     status,
		"storage":    storageStatus,
		"workspaces": h.svc.OpenWorkspaces(),
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate server statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_projects":     stats.TotalProjects,
		"total_files":        stats.TotalFiles,
		"open_workspaces":    h.svc.OpenWorkspaces(),
		"storage_used_bytes": stats.StorageUsed,
		"storage_used_human": humanizeBytes(stats.StorageUsed),
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger := util.GetLogger("api")
		logger.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Msg("request failed")
	}
	return c.JSON(status, echo.Map{"error": message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "project not found"
	case errors.Is(err, service.ErrFileNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrDuplicateName), errors.Is(err, workspace.ErrNotOpen):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidProject),
		errors.Is(err, service.ErrInvalidTree),
		errors.Is(err, core.ErrInvalidPath),
		errors.Is(err, workspace.ErrUnknownOp):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, workspace.ErrPersistence):
		return http.StatusBadGateway, "failed to persist project files"
	case errors.Is(err, workspace.ErrClosed):
		return http.StatusServiceUnavailable, "workspace is closed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
