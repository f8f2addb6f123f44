package api

import (
	"net/http"
	"time"

	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/health"
	"github.com/followread/backend/internal/metrics"
	"github.com/followread/backend/internal/middleware"
	"github.com/followread/backend/internal/websocket"
)

type Router struct {
	mux              *http.ServeMux
	authService      *auth.Service
	authHandlers     *AuthHandlers
	videoHandlers    *VideoHandlers
	downloadHandlers *DownloadHandlers
	noteHandlers     *NoteHandlers
	assetHandlers    *AssetHandlers
	newsHandlers     *NewsHandlers
	wsHandler        *websocket.Handler
	healthHandler    *health.Handler
	metrics          *metrics.Metrics
}

type RouterConfig struct {
	AuthService      *auth.Service
	AuthHandlers     *AuthHandlers
	VideoHandlers    *VideoHandlers
	DownloadHandlers *DownloadHandlers
	NoteHandlers     *NoteHandlers
	AssetHandlers    *AssetHandlers
	NewsHandlers     *NewsHandlers
	WSHandler        *websocket.Handler
	HealthHandler    *health.Handler
	Metrics          *metrics.Metrics
}

func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		authService:      cfg.AuthService,
		authHandlers:     cfg.AuthHandlers,
		videoHandlers:    cfg.VideoHandlers,
		downloadHandlers: cfg.DownloadHandlers,
		noteHandlers:     cfg.NoteHandlers,
		assetHandlers:    cfg.AssetHandlers,
		newsHandlers:     cfg.NewsHandlers,
		wsHandler:        cfg.WSHandler,
		healthHandler:    cfg.HealthHandler,
		metrics:          cfg.Metrics,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health and metrics
	r.mux.HandleFunc("GET /health", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /health/live", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", r.metrics.Handler())

	// Auth routes (no auth required)
	r.mux.HandleFunc("POST /api/v1/auth/register", r.authHandlers.Register)
	r.mux.HandleFunc("POST /api/v1/auth/login", r.authHandlers.Login)
	r.mux.HandleFunc("POST /api/v1/auth/refresh", r.authHandlers.Refresh)
	r.mux.HandleFunc("POST /api/v1/auth/logout", r.withAuth(r.authHandlers.Logout))

	// Video library
	r.mux.HandleFunc("POST /api/v1/videos", r.withAuth(r.videoHandlers.AddVideo))
	r.mux.HandleFunc("GET /api/v1/videos", r.withAuth(r.videoHandlers.ListVideos))
	r.mux.HandleFunc("GET /api/v1/videos/sources", r.withAuth(r.videoHandlers.ListSources))
	r.mux.HandleFunc("GET /api/v1/videos/{id}", r.withAuth(r.videoHandlers.GetVideo))
	r.mux.HandleFunc("DELETE /api/v1/videos/{id}", r.withAuth(r.videoHandlers.DeleteVideo))
	r.mux.HandleFunc("POST /api/v1/videos/{id}/parse", r.withAuth(r.videoHandlers.ParseSubtitles))
	r.mux.HandleFunc("GET /api/v1/videos/{id}/sentences", r.withAuth(r.videoHandlers.GetSentences))
	r.mux.HandleFunc("GET /api/v1/videos/{id}/formats", r.withTimeout(60*time.Second, r.withAuth(r.downloadHandlers.ListFormats)))
	r.mux.HandleFunc("GET /api/v1/videos/{id}/downloads", r.withAuth(r.downloadHandlers.ListVideoTasks))

	// Download tasks. The websocket route carries its own token
	// authentication, so it bypasses withAuth.
	r.mux.HandleFunc("POST /api/v1/downloads", r.withAuth(r.downloadHandlers.CreateTask))
	r.mux.HandleFunc("GET /api/v1/downloads", r.withAuth(r.downloadHandlers.ListTasks))
	r.mux.HandleFunc("POST /api/v1/downloads/quick", r.withAuth(r.downloadHandlers.QuickDownload))
	r.mux.HandleFunc("GET /api/v1/downloads/progress/ws", r.wsHandler.ServeWS)
	r.mux.HandleFunc("GET /api/v1/downloads/{task_id}", r.withAuth(r.downloadHandlers.GetTask))
	r.mux.HandleFunc("DELETE /api/v1/downloads/{task_id}", r.withAuth(r.downloadHandlers.DeleteTask))
	r.mux.HandleFunc("GET /api/v1/downloads/{task_id}/file", r.withAuth(r.downloadHandlers.ServeFile))

	// Study notes
	r.mux.HandleFunc("POST /api/v1/notes", r.withAuth(r.noteHandlers.CreateNote))
	r.mux.HandleFunc("GET /api/v1/notes", r.withAuth(r.noteHandlers.ListNotes))
	r.mux.HandleFunc("PUT /api/v1/notes/{id}", r.withAuth(r.noteHandlers.UpdateNote))
	r.mux.HandleFunc("DELETE /api/v1/notes/{id}", r.withAuth(r.noteHandlers.DeleteNote))

	// Asset ledger
	r.mux.HandleFunc("POST /api/v1/assets", r.withAuth(r.assetHandlers.CreateAsset))
	r.mux.HandleFunc("GET /api/v1/assets", r.withAuth(r.assetHandlers.ListAssets))
	r.mux.HandleFunc("GET /api/v1/assets/summary", r.withAuth(r.assetHandlers.Summary))
	r.mux.HandleFunc("PUT /api/v1/assets/{id}", r.withAuth(r.assetHandlers.UpdateAsset))
	r.mux.HandleFunc("DELETE /api/v1/assets/{id}", r.withAuth(r.assetHandlers.DeleteAsset))

	// News headlines
	r.mux.HandleFunc("GET /api/v1/news", r.withTimeout(15*time.Second, r.withAuth(r.newsHandlers.GetHeadlines)))
}

// withTimeout bounds routes that call slow upstreams. Websocket and file
// streaming routes stay unwrapped.
func (r *Router) withTimeout(d time.Duration, next http.HandlerFunc) http.HandlerFunc {
	wrapped := middleware.Timeout(d)(next)
	return wrapped.ServeHTTP
}

func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	middleware := auth.Middleware(r.authService)
	return func(w http.ResponseWriter, req *http.Request) {
		middleware(http.HandlerFunc(next)).ServeHTTP(w, req)
	}
}
