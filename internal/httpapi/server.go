package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	apimw "github.com/hamed0406/uptimeworker/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

// Server is the worker's read-only status API.
type Server struct {
	Logger   *zap.Logger
	Checks   repo.CheckStore
	Gatherer prometheus.Gatherer
	RPM      int
	Burst    int
}

func NewServer(l *zap.Logger, checks repo.CheckStore, g prometheus.Gatherer) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Checks: checks, Gatherer: g, RPM: 120, Burst: 60}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(s.RPM, s.Burst, false))
		r.Get("/api/checks", s.handleListChecks)
		r.Get("/api/checks/{id}", s.handleGetCheck)
	})

	return r
}

// CheckView is the API shape of a check. The owner's phone is not exposed.
type CheckView struct {
	ID             string       `json:"id"`
	Protocol       string       `json:"protocol"`
	URL            string       `json:"url"`
	Method         string       `json:"method"`
	SuccessCodes   []int        `json:"successCodes"`
	TimeoutSeconds int          `json:"timeoutSeconds"`
	State          domain.State `json:"state"`
	LastChecked    *time.Time   `json:"lastChecked,omitempty"`
}

// ListResponse is returned by GET /api/checks. Invalid lists the ids whose
// stored record the worker would skip.
type ListResponse struct {
	Checks  []CheckView `json:"checks"`
	Invalid []string    `json:"invalid"`
}

func viewOf(c domain.Check) CheckView {
	v := CheckView{
		ID:             c.ID,
		Protocol:       string(c.Protocol),
		URL:            c.URL,
		Method:         string(c.Method),
		SuccessCodes:   c.SuccessCodes,
		TimeoutSeconds: c.TimeoutSeconds,
		State:          c.State,
	}
	if c.Checked() {
		t := c.LastCheckedAt()
		v.LastChecked = &t
	}
	return v
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Checks.List(r.Context())
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		s.Logger.Error("api_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}

	resp := ListResponse{Checks: []CheckView{}, Invalid: []string{}}
	for _, id := range ids {
		rec, err := s.Checks.Read(r.Context(), id)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			s.Logger.Warn("api_read_error", zap.String("check_id", id), zap.Error(err))
			resp.Invalid = append(resp.Invalid, id)
			continue
		}
		c, err := domain.ValidateRecord(rec)
		if err != nil {
			resp.Invalid = append(resp.Invalid, id)
			continue
		}
		resp.Checks = append(resp.Checks, viewOf(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.Checks.Read(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "check not found")
		return
	}
	if err != nil {
		s.Logger.Error("api_read_error", zap.String("check_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	c, err := domain.ValidateRecord(rec)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "invalid check", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves the router on addr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("api_listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.Logger.Info("api_stopped")
	return nil
}
