package router

import (
	"encoding/json"
	"net/http"
	"time"

	pageHandler "halaman/internal/page"
	"halaman/internal/page/service"
	"halaman/middleware"
	"halaman/socket"
)

func Setup(svc *service.PageService, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket editing sessions
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	// REST API
	h := pageHandler.NewPageHandler(svc, hub)

	mux.HandleFunc("GET /api/pages", h.ListPages)
	mux.HandleFunc("GET /api/pages/tree", h.Tree)
	mux.HandleFunc("GET /api/pages/search", h.Search)
	mux.HandleFunc("GET /api/pages/{id}", h.GetPage)
	mux.HandleFunc("GET /api/pages/{id}/versions", h.ListVersions)
	mux.HandleFunc("GET /api/pages/{id}/versions/{versionId}", h.GetVersion)
	mux.HandleFunc("GET /api/pages/{id}/breadcrumbs", h.Breadcrumbs)
	mux.HandleFunc("POST /api/pages", h.CreatePage)
	mux.HandleFunc("POST /api/pages/reorder", h.Reorder)
	mux.HandleFunc("POST /api/pages/{id}/versions/{versionId}/restore", h.RestoreVersion)
	mux.HandleFunc("PUT /api/pages/{id}", h.UpdatePage)
	mux.HandleFunc("DELETE /api/pages/{id}", h.DeletePage)

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	return middleware.CORSMiddleware(mux)
}
