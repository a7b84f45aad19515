package screen

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pubcast/internal/display"
	"pubcast/internal/eventbus"
	"pubcast/internal/observability/pprof"
	"pubcast/internal/producer"
	"pubcast/internal/render"
	"pubcast/internal/storage"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

//go:embed web/screen.html
var webFS embed.FS

const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultMaxBodyBytes = 8 << 20
	defaultHistory      = 20
	maxHistory          = 200
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	Pprof        pprof.Config
}

// Deps are the collaborators the HTTP surface reads from and posts through.
// Store and Health may be nil.
type Deps struct {
	Hub      *Hub
	Bus      eventbus.Bus
	Composer *producer.Composer
	Variants *variants.Store
	Store    storage.Store
	// Health adds process-level details to GET /health.
	Health func() map[string]any
}

type Server struct {
	cfg  Config
	deps Deps
	log  logx.Logger
	srv  *http.Server

	upgrader websocket.Upgrader

	quit     chan struct{}
	quitOnce sync.Once
	clients  sync.WaitGroup
}

func NewServer(cfg Config, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log.With(logx.String("comp", "http")),
		quit: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Screens are served from this process but may be opened through a proxy
			// with a different host; frames carry no secrets.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/variants", s.handleVariants)
	mux.HandleFunc("POST /api/post", s.handlePost)
	mux.HandleFunc("GET /api/posts", s.handlePosts)
	mux.HandleFunc("GET /api/screens", s.handleScreens)
	mux.HandleFunc("GET /api/screens/{name}", s.handleScreen)
	mux.HandleFunc("GET /ws/screens/{name}", s.handleScreenWS)
	mux.HandleFunc("GET /screens/{name}", s.handleScreenPage)
	pprof.Register(mux, s.cfg.Pprof)
	return mux
}

// Serve listens on the configured address and serves until Shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes websocket clients and waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })
	err := s.srv.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"status":  "ok",
		"screens": s.deps.Hub.Names(),
	}
	if st, ok := s.deps.Bus.(interface{ Stats() eventbus.Stats }); ok {
		out["transport"] = st.Stats()
	}
	if s.deps.Health != nil {
		for k, v := range s.deps.Health() {
			out[k] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	cat := s.deps.Variants.Load()
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{
			"text":  cat.List(display.KindText),
			"image": cat.List(display.KindImage),
		})
	case string(display.KindText), string(display.KindImage):
		writeJSON(w, http.StatusOK, cat.List(display.Kind(kind)))
	default:
		writeError(w, http.StatusBadRequest, "kind must be text or image")
	}
}

type postBody struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	Media    string `json:"media"`
	ShowText *bool  `json:"show_text"`
	Variant  string `json:"variant"`
}

type postReply struct {
	ID         int64  `json:"id"`
	Kind       string `json:"type"`
	DurationMS int64  `json:"duration"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var body postBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	req, err := s.deps.Composer.Publish(r.Context(), producer.Input{
		Sender:   body.Sender,
		Origin:   "web",
		Text:     body.Text,
		Media:    body.Media,
		ShowText: body.ShowText,
		Variant:  body.Variant,
		Channel:  "http",
		Client:   clientIP(r),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, postReply{ID: req.ID, Kind: string(req.Kind), DurationMS: req.DurationMS})
	case errors.Is(err, producer.ErrRateLimited):
		w.Header().Set("Retry-After", "10")
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, producer.ErrEmpty), errors.Is(err, producer.ErrTooLong),
		errors.Is(err, producer.ErrBadMedia), errors.Is(err, variants.ErrUnknownVariant):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("post failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "post failed")
	}
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusNotFound, storage.ErrDisabled.Error())
		return
	}
	n := defaultHistory
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = min(v, maxHistory)
	}
	posts, err := s.deps.Store.RecentPosts(r.Context(), n)
	if err != nil {
		s.log.Warn("post history read failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if posts == nil {
		posts = []storage.PostEntry{}
	}
	writeJSON(w, http.StatusOK, posts)
}

type screenSummary struct {
	Name     string        `json:"name"`
	Phase    display.Phase `json:"phase"`
	Mode     render.Mode   `json:"mode"`
	QueueLen int           `json:"queue_len"`
	Shown    uint64        `json:"shown"`
}

func (s *Server) handleScreens(w http.ResponseWriter, r *http.Request) {
	out := make([]screenSummary, 0, len(s.deps.Hub.Names()))
	for _, n := range s.deps.Hub.Names() {
		sched, _ := s.deps.Hub.Scheduler(n)
		snap := sched.Snapshot()
		out = append(out, screenSummary{
			Name:     n,
			Phase:    snap.Phase,
			Mode:     render.ModeOf(snap.Current),
			QueueLen: snap.QueueLen,
			Shown:    snap.Shown,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	f, ok := s.deps.Hub.Frame(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown screen")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleScreenPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.deps.Hub.Scheduler(r.PathValue("name")); !ok {
		http.NotFound(w, r)
		return
	}
	b, err := webFS.ReadFile("web/screen.html")
	if err != nil {
		http.Error(w, "page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

// clientIP is the peer address without the port. Proxy headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
