package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"halaman/internal/page/model"
	"halaman/internal/page/repository"
	"halaman/internal/page/service"
	"halaman/pkg/logger"
	"halaman/socket"
)

type PageHandler struct {
	Service *service.PageService
	Hub     *socket.Hub
}

func NewPageHandler(svc *service.PageService, hub *socket.Hub) *PageHandler {
	return &PageHandler{Service: svc, Hub: hub}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serviceError maps the error taxonomy onto status codes: missing
// resources are terminal 404s, everything else is a persistence failure.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrPageNotFound):
		writeError(w, http.StatusNotFound, "Page not found")
	case errors.Is(err, repository.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "Version not found")
	default:
		writeError(w, http.StatusInternalServerError, "Database error")
	}
}

// ListPages returns the flat, ordered page list; the client builds its
// own tree from it.
func (h *PageHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.Service.ListPages()
	if err != nil {
		logger.Sugar.Errorf("Failed to list pages: %v", err)
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// Tree returns the server-built forest, filtered ancestor-inclusively
// when q is present.
func (h *PageHandler) Tree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.Service.FilterTree(r.URL.Query().Get("q"))
	if err != nil {
		logger.Sugar.Errorf("Failed to build page tree: %v", err)
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

func (h *PageHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.Search(r.URL.Query().Get("q"))
	if err != nil {
		logger.Sugar.Errorf("Search failed: %v", err)
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *PageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.GetPage(r.PathValue("id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PageHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePageRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body creates a default page

	page, err := h.Service.CreatePage(req)
	if err != nil {
		logger.Sugar.Errorf("Failed to create page: %v", err)
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (h *PageHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	var patch model.PagePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	page, err := h.Service.UpdatePage(r.PathValue("id"), patch)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PageHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Service.DeletePage(id); err != nil {
		serviceError(w, err)
		return
	}
	if h.Hub != nil {
		h.Hub.RemovePage(id)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Reorder applies a batch of (id, parent_id, position) moves atomically.
func (h *PageHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req model.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pages == nil {
		writeError(w, http.StatusBadRequest, "pages must be an array")
		return
	}

	if err := h.Service.Reorder(req.Pages); err != nil {
		if errors.Is(err, service.ErrReorderCycle) {
			writeError(w, http.StatusBadRequest, "reorder would create a cycle")
			return
		}
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PageHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.Service.ListVersions(r.PathValue("id"))
	if err != nil {
		logger.Sugar.Errorf("Failed to list versions: %v", err)
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *PageHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := strconv.ParseInt(r.PathValue("versionId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Version not found")
		return
	}

	version, err := h.Service.GetVersion(r.PathValue("id"), versionID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

// RestoreVersion copies a snapshot's title/content back onto the page.
func (h *PageHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := strconv.ParseInt(r.PathValue("versionId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Version not found")
		return
	}

	page, err := h.Service.RestoreVersion(r.PathValue("id"), versionID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PageHandler) Breadcrumbs(w http.ResponseWriter, r *http.Request) {
	crumbs, err := h.Service.Breadcrumbs(r.PathValue("id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, crumbs)
}
