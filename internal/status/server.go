// Package status serves a small read-only HTTP API about the agent.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"ghnotifier/internal/engine"
	"ghnotifier/internal/runtime/supervisor"
	"ghnotifier/pkg/logx"
)

type Config struct {
	// Addr is host:port; empty disables the server.
	Addr string
	// Pprof mounts net/http/pprof under /debug/pprof.
	Pprof bool
}

// Source exposes engine state.
type Source interface {
	Watermark() (time.Time, bool)
	LastReport() (engine.Report, bool)
	FollowUps() supervisor.Counters
}

type Server struct {
	cfg     Config
	src     Source
	history *History
	log     logx.Logger
	started time.Time
	version string

	mu  sync.Mutex
	sup *supervisor.Supervisor
	srv *http.Server
}

func New(cfg Config, src Source, history *History, version string, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if history == nil {
		history = NewHistory(DefaultHistory)
	}
	return &Server{
		cfg:     cfg,
		src:     src,
		history: history,
		log:     log.With(logx.String("comp", "status")),
		started: time.Now(),
		version: version,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("latency", time.Since(start)),
		)
	})

	r.GET("/health", s.health)
	r.GET("/cycles", s.cycles)
	r.GET("/items", s.items)

	if s.cfg.Pprof {
		r.GET("/debug/pprof/", gin.WrapF(hpprof.Index))
		r.GET("/debug/pprof/:name", pprofHandler)
	}
	return r
}

func pprofHandler(c *gin.Context) {
	switch name := c.Param("name"); name {
	case "cmdline":
		hpprof.Cmdline(c.Writer, c.Request)
	case "profile":
		hpprof.Profile(c.Writer, c.Request)
	case "symbol":
		hpprof.Symbol(c.Writer, c.Request)
	case "trace":
		hpprof.Trace(c.Writer, c.Request)
	default:
		hpprof.Handler(name).ServeHTTP(c.Writer, c.Request)
	}
}

type healthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version,omitempty"`
	Uptime    string         `json:"uptime"`
	Watermark *time.Time     `json:"watermark,omitempty"`
	LastCycle *engine.Report `json:"last_cycle,omitempty"`
	FollowUps int64          `json:"pending_followups"`
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{
		Status:  "starting",
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.src != nil {
		if wm, ok := s.src.Watermark(); ok {
			resp.Watermark = &wm
		}
		resp.FollowUps = s.src.FollowUps().Active
		if rep, ok := s.src.LastReport(); ok {
			resp.LastCycle = &rep
			resp.Status = "ok"
			if rep.FetchErr != "" {
				resp.Status = "degraded"
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cycles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cycles": s.history.Recent()})
}

func (s *Server) items(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.history.RecentItems()})
}

// Start serves in the background under a restart loop. It is a no-op when
// Addr is empty or the server is already running.
func (s *Server) Start(ctx context.Context) {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	if !isLoopbackAddr(addr) {
		s.log.Warn("status API bound to a non-loopback address", logx.String("addr", addr))
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.sup.GoRestart("status.serve", func(c context.Context) error {
		return s.serveOnce(c, addr)
	}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
}

func (s *Server) serveOnce(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("status listen failed", logx.String("addr", addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("status API listening", logx.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Stop shuts the server down and waits, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.srv = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
