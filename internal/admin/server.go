package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/service"
)

// Server is the operator HTTP API: stats, topup decisions and broadcasts,
// all behind basic auth. Decisions made here act as the configured operator
// actor id.
type Server struct {
	cfg    config.Config
	log    *slog.Logger
	users  *service.UserService
	topups *service.TopupService
	jobs   *service.JobService
	bot    *tgbotapi.BotAPI
	router *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, users *service.UserService, topups *service.TopupService, jobs *service.JobService, bot *tgbotapi.BotAPI) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		log:    log,
		users:  users,
		topups: topups,
		jobs:   jobs,
		bot:    bot,
		router: r,
	}
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/stats", s.handleStats)
		protected.Get("/jobs/running", s.handleRunningJobs)
		protected.Route("/topups", func(r chi.Router) {
			r.Get("/", s.handleListPending)
			r.Post("/{id}/approve", s.handleApprove)
			r.Post("/{id}/reject", s.handleReject)
		})
		protected.Post("/broadcast", s.handleBroadcast)
	})
	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.AdminListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin api listening", "addr", s.cfg.AdminListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.users.Stats(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_users":    stats.TotalUsers,
		"total_tokens":   stats.TotalTokens,
		"completed_jobs": stats.CompletedJobs,
		"running_jobs":   len(s.jobs.Running()),
	})
}

func (s *Server) handleRunningJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"running": s.jobs.Running()})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.topups.ListPending(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	req, err := s.topups.Approve(r.Context(), id, s.cfg.AdminActorID)
	if err != nil {
		s.decisionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var body rejectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	req, err := s.topups.Reject(r.Context(), id, s.cfg.AdminActorID, body.Notes)
	if err != nil {
		s.decisionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) decisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "request not found", http.StatusNotFound)
	case errors.Is(err, service.ErrAlreadyProcessed):
		http.Error(w, "request already processed", http.StatusConflict)
	case errors.Is(err, service.ErrUnauthorized):
		http.Error(w, "actor is not an operator", http.StatusForbidden)
	default:
		s.internalError(w, err)
	}
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	ids, err := s.users.ListTelegramIDs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	count := 0
	for _, id := range ids {
		msg := tgbotapi.NewMessage(id, req.Message)
		if _, err := s.bot.Send(msg); err != nil {
			s.log.Error("send broadcast", "user", id, "err", err)
			continue
		}
		count++
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sent":  count,
		"total": len(ids),
	})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.cfg.AdminUsername || pass != s.cfg.AdminPassword {
				w.Header().Set("WWW-Authenticate", `Basic realm="tubefetch"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
