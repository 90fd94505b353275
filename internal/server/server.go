package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// SecretHeader - заголовок, в котором Telegram присылает secret_token webhook-а
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler принимает обновление из webhook
type UpdateHandler func(update tgbotapi.Update)

// Server - HTTP-приёмник webhook Telegram
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// Config параметры HTTP-сервера
type Config struct {
	Addr   string
	Path   string
	Secret string
}

// New собирает роутер: POST Path принимает обновления, GET /healthz отвечает ok
func New(cfg Config, handle UpdateHandler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      otelhttp.NewHandler(Router(cfg, handle, log), "coachbot-webhook"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Router возвращает chi-роутер без обёртки трассировки
func Router(cfg Config, handle UpdateHandler, log *zap.Logger) http.Handler {
	path := cfg.Path
	if path == "" {
		path = "/webhook"
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post(path, func(w http.ResponseWriter, req *http.Request) {
		if cfg.Secret != "" {
			got := req.Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Secret)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			log.Warn("Некорректное обновление webhook", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handle(update)
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// requestLogger пишет строку лога на каждый запрос
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Start слушает адрес до вызова Shutdown
func (s *Server) Start() error {
	s.log.Info("Webhook сервер запущен", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
