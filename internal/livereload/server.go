package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/kiln/internal/logging"
)

// StatusPath serves the outcome of the last build as JSON.
const StatusPath = "/_kiln/status"

// ServerOptions configure the dev server.
type ServerOptions struct {
	Host string
	Port int
	// Dir is served as static files at "/" when set.
	Dir    string
	Hub    *Hub
	Logger logging.Logger
}

// Status summarises the last build.
type Status struct {
	Files    int       `json:"files"`
	Compiled int       `json:"compiled"`
	Cached   int       `json:"cached"`
	Failed   int       `json:"failed"`
	Errors   []string  `json:"errors,omitempty"`
	Warnings int       `json:"warnings"`
	Duration string    `json:"duration"`
	BuiltAt  time.Time `json:"built_at"`

	// CacheHitRate is the percentage of files served from the build
	// cache since the server started.
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// Server is the development server behind kiln watch --serve.
type Server struct {
	opts   ServerOptions
	router chi.Router
	hub    *Hub
	log    logging.Logger
	status atomic.Pointer[Status]

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds the router. Nothing listens until Run.
func NewServer(opts ServerOptions) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub(Options{Logger: opts.Logger})
	}
	s := &Server{
		opts: opts,
		hub:  opts.Hub,
		log:  logging.OrNop(opts.Logger).WithComponent("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(s.logRequests)
	r.Get(s.hub.Path(), s.hub.ServeHTTP)
	r.Get(StatusPath, s.handleStatus)
	if opts.Dir != "" {
		FileServer(r, "/", http.Dir(opts.Dir))
	}
	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// SetStatus records the outcome of a build.
func (s *Server) SetStatus(st Status) { s.status.Store(&st) }

// Addr returns the listening address, or the configured one before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info(ctx, "dev server listening", "addr", ln.Addr().String(), "reload", s.hub.Path())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down dev server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status.Load()
	if st == nil {
		st = &Status{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Error(r.Context(), err, "encoding status")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

// FileServer serves root under path.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}
