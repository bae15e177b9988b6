package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/veille-ai/veille/pkg/usecase"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

// DefaultOwner is used when a request carries no user header
const DefaultOwner = "anonymous"

type Server struct {
	router       *chi.Mux
	uc           *usecase.UseCases
	defaultOwner string
	maxBodySize  int64
}

type Options func(*Server)

// WithDefaultOwner sets the owner of requests without the user header
func WithDefaultOwner(owner string) Options {
	return func(s *Server) {
		s.defaultOwner = owner
	}
}

// WithMaxBodySize bounds request bodies (image uploads are base64 encoded)
func WithMaxBodySize(n int64) Options {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:       r,
		uc:           uc,
		defaultOwner: DefaultOwner,
		maxBodySize:  16 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(ownerMiddleware(s.defaultOwner))
		r.Use(middleware.RequestSize(s.maxBodySize))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.createConversation)
			r.Get("/", s.listConversations)
			r.Patch("/{conversationID}", s.renameConversation)
			r.Get("/{conversationID}/messages", s.listConversationMessages)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.startSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Delete("/", s.endSession)
				r.Put("/conversation", s.switchConversation)
				r.Post("/turns", s.handleTurn)
				r.Post("/edits", s.handleEdit)
				r.Get("/messages", s.sessionMessages)
				r.Get("/edits", s.sessionEdits)
			})
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
