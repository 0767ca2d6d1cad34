// Package api serves a read-only HTTP view of the landing zone: collection
// runs, tool runs, findings, summaries and evaluation checks. The read
// endpoints are open; session-cookie auth guards logout, /me and user
// creation (admin only).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/evaluation"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/insights"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

// Store is the minimal landing-zone contract the API needs.
type Store interface {
	ListCollectionRuns(limit, offset int) ([]lz.CollectionRun, error)
	GetCollectionRun(id string) (lz.CollectionRun, error)
	ListToolRuns(collectionRunID string) ([]lz.ToolRun, error)
	ListFindings(collectionRunID, minSeverity string) ([]lz.Finding, error)
	CountFindingsBySeverity(collectionRunID string) (map[string]int, error)
}

// UserStore is the auth/audit contract.
type UserStore interface {
	GetUserByUsername(string) (storage.User, string, error)
	CreateUser(username, passHash, role string) (int64, error)
	CreateSession(int64, string, time.Time) error
	GetSession(string) (storage.User, error)
	DeleteSession(string) error
	LogAudit(username, action, resource string, meta map[string]any) error
}

type Server struct {
	DB              *storage.DB
	Store           Store
	UserStore       UserStore
	Logger          *slog.Logger
	SessionDuration time.Duration

	// QueriesDir enables the named-query endpoints when set.
	QueriesDir string
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	withCORS := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("GET /api/v1/health", withCORS(s.handleHealth))

	mux.HandleFunc("POST /api/v1/auth/login", withCORS(s.handleLogin))
	mux.HandleFunc("POST /api/v1/auth/logout", withCORS(withAuth(s, s.handleLogout, "auth:logout")))
	mux.HandleFunc("GET /api/v1/me", withCORS(withAuth(s, s.handleMe, "me")))
	mux.HandleFunc("POST /api/v1/users", withCORS(withAdmin(s, s.handleCreateUser, "users:create")))

	mux.HandleFunc("GET /api/v1/collections", withCORS(s.handleListCollections))
	mux.HandleFunc("GET /api/v1/collections/{id}", withCORS(s.handleGetCollection))
	mux.HandleFunc("GET /api/v1/collections/{id}/tools", withCORS(s.handleListToolRuns))
	mux.HandleFunc("GET /api/v1/collections/{id}/findings", withCORS(s.handleListFindings))
	mux.HandleFunc("GET /api/v1/collections/{id}/summary", withCORS(s.handleSummary))

	mux.HandleFunc("GET /api/v1/checks", withCORS(s.handleListChecks))

	mux.HandleFunc("GET /api/v1/queries", withCORS(s.handleListQueries))
	mux.HandleFunc("GET /api/v1/collections/{id}/queries/{name}", withCORS(s.handleRunQuery))

	mux.HandleFunc("/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := parseInt(q.Get("offset"), 0)

	rows, err := s.Store.ListCollectionRuns(limit, offset)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetCollectionRun(r.PathValue("id"))
	if err != nil {
		s.err(w, http.StatusNotFound, "collection run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListToolRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	items, err := s.Store.ListToolRuns(id)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection_run_id": id, "items": items, "count": len(items),
	})
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	min := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("min_severity")))
	if min == "" {
		min = "LOW"
	}
	items, err := s.Store.ListFindings(id, min)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection_run_id": id, "min_severity": min, "items": items, "count": len(items),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		s.err(w, http.StatusNotImplemented, "summary unavailable")
		return
	}
	summary, err := insights.BuildSummary(s.DB, r.PathValue("id"))
	if err != nil {
		s.err(w, http.StatusNotFound, "collection run not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListChecks exposes the registered evaluation checks (IDs, names,
// categories). No auth needed for read-only metadata.
func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Severity string `json:"severity"`
	}
	var out []item
	for _, c := range evaluation.List() {
		out = append(out, item{
			ID: c.ID, Name: c.Name,
			Category: string(c.Category), Severity: string(c.Severity),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

// handleListQueries lists the named insight queries available on disk.
func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if s.QueriesDir == "" {
		s.err(w, http.StatusNotImplemented, "named queries unavailable")
		return
	}
	names, err := insights.NewFetcher(s.DB, s.QueriesDir).ListQueries()
	if err != nil {
		s.err(w, http.StatusInternalServerError, "list queries: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": names, "count": len(names)})
}

// handleRunQuery renders a named query against one tool run of a collection.
// The tool query parameter selects the run_pk; remaining query parameters are
// passed through as template parameters.
func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil || s.QueriesDir == "" {
		s.err(w, http.StatusNotImplemented, "named queries unavailable")
		return
	}
	id, name := r.PathValue("id"), r.PathValue("name")
	if _, err := s.Store.GetCollectionRun(id); err != nil {
		s.err(w, http.StatusNotFound, "collection run not found")
		return
	}
	q := r.URL.Query()
	tool := q.Get("tool")
	if tool == "" {
		s.err(w, http.StatusBadRequest, "tool parameter is required")
		return
	}
	runPK, err := s.DB.GetRunPKAny(id, tool)
	if err != nil {
		s.err(w, http.StatusNotFound, "no run for tool "+tool)
		return
	}
	params := map[string]any{}
	for k, vs := range q {
		if k == "tool" || len(vs) == 0 {
			continue
		}
		params[k] = vs[0]
	}
	rows, err := insights.NewFetcher(s.DB, s.QueriesDir).Fetch(name, runPK, params)
	if err != nil {
		s.err(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection_run_id": id, "query": name, "tool": tool,
		"items": rows, "count": len(rows),
	})
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
