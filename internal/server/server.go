package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/graxinc/errutil"

	"github.com/UtakataKyosui/serenade/internal/gate"
	"github.com/UtakataKyosui/serenade/internal/handlers"
	"github.com/UtakataKyosui/serenade/internal/handlers/commands"
	"github.com/UtakataKyosui/serenade/internal/registry"
	"github.com/UtakataKyosui/serenade/internal/utils"
)

var lookup map[string]handlers.Handler = map[string]handlers.Handler{
	"ping":  &commands.Ping{},
	"hello": &commands.Hello{},
}

const publishTimeout = 15 * time.Second

// Publisher registers the command catalogue with the platform for one guild.
type Publisher interface {
	PublishGuildCommands(ctx context.Context, guildID string, commands []*dg.ApplicationCommand) error
}

// Server owns the single inbound endpoint. Every interaction request passes
// the gate before it reaches the dispatch handler; the catalogue is built once
// here and never mutated afterwards.
type Server struct {
	l         *slog.Logger
	gate      *gate.Gate
	registry  *registry.Registry
	publisher Publisher
	catalogue []*dg.ApplicationCommand
	router    chi.Router
	srv       *http.Server

	publishes sync.WaitGroup
}

func NewServer(l *slog.Logger, g *gate.Gate, reg *registry.Registry, pub Publisher, addr string) *Server {
	s := Server{
		l:         l,
		gate:      g,
		registry:  reg,
		publisher: pub,
		catalogue: buildCatalogue(l),
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(g.Middleware)
		r.Post("/", s.handleInteraction)
	})
	s.router = r

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &s
}

func buildCatalogue(l *slog.Logger) []*dg.ApplicationCommand {
	var catalogue []*dg.ApplicationCommand

	for _, h := range lookup {
		cmd := h.Metadata()
		result := utils.ValidateCommand(&cmd)
		if result.WasModified {
			l.Warn("command was modified during validation", "command", cmd.Name, "errors", result.Errors)
		}
		catalogue = append(catalogue, result.Command)
	}

	return catalogue
}

// Handler exposes the routing tree, gate included.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.l.Info("listening", "addr", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errutil.With(err)
	}

	return nil
}

// Shutdown stops accepting requests and drains in-flight command publishes.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.publishes.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.l.Warn("shutdown deadline reached with publishes still in flight")
	}

	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := utils.GenerateID()

		next.ServeHTTP(w, r)

		s.l.Debug("request handled",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
