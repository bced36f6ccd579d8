package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports the size of the local catalog.
type StatsProvider interface {
	Stats() catalog.Stats
}

// Handler serves the local catalog over HTTP.
//
// Route table:
//
//	GET  /comics/{num}   → resolve by number
//	GET  /comics/random  → random comic
//	GET  /search?q=      → best match, random fallback (also for empty q)
//	POST /sync           → run a sync pass
//	GET  /stats          → catalog size
//	GET  /metrics        → Prometheus scrape (when Gatherer is set)
type Handler struct {
	Resolver comics.Resolver
	Syncer   comics.Syncer
	Stats    StatsProvider

	// Gatherer exposes metrics on /metrics. Optional.
	Gatherer prometheus.Gatherer

	// Logger receives internal errors. Defaults to discarding.
	Logger *slog.Logger

	once sync.Once
	mux  *http.ServeMux
}

// NewHandler creates a new Handler.
func NewHandler(resolver comics.Resolver, syncer comics.Syncer, stats StatsProvider) *Handler {
	return &Handler{
		Resolver: resolver,
		Syncer:   syncer,
		Stats:    stats,
	}
}

// ServeHTTP routes the request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() { h.mux = h.routes() })
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /comics/random", h.handleRandom)
	mux.HandleFunc("GET /comics/{num}", h.handleComic)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("POST /sync", h.handleSync)
	mux.HandleFunc("GET /stats", h.handleStats)
	if h.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (h *Handler) handleComic(w http.ResponseWriter, r *http.Request) {
	num, err := strconv.Atoi(r.PathValue("num"))
	if err != nil {
		h.writeError(w, r, comics.Errorf(comics.EINVALID, "invalid comic number %q", r.PathValue("num")))
		return
	}
	h.resolve(w, r, comics.ByID(num))
}

func (h *Handler) handleRandom(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, comics.Random())
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	// An empty or missing q has no keywords and takes the random fallback.
	h.resolve(w, r, comics.ByQuery(r.URL.Query().Get("q")))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, req comics.Request) {
	res, err := h.Resolver.Resolve(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionResponse{Resolution: res, Fallback: res.Fallback()})
}

// resolutionResponse flags random fallbacks so clients can warn about them.
type resolutionResponse struct {
	*comics.Resolution
	Fallback bool `json:"fallback"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.Syncer.Sync(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Stats.Stats())
}

// errorResponse is the body of a failed request.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := comics.ErrorCode(err), comics.ErrorMessage(err)
	if code == comics.EINTERNAL && h.Logger != nil {
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, ErrorStatusCode(code), errorResponse{Code: code, Error: message})
}

// ErrorStatusCode returns the HTTP status for an application error code.
func ErrorStatusCode(code string) int {
	switch code {
	case comics.EINVALID:
		return http.StatusBadRequest
	case comics.ENOTFOUND:
		return http.StatusNotFound
	case comics.ECONFLICT:
		return http.StatusConflict
	case comics.EEMPTY:
		return http.StatusServiceUnavailable
	case comics.EUNAVAILABLE:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
