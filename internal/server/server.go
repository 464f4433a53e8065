package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alumnijourney/apiserver/config"
	"github.com/alumnijourney/apiserver/internal/db"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/handlers"
	"github.com/alumnijourney/apiserver/internal/logger"
	"github.com/alumnijourney/apiserver/internal/monitoring"
	"github.com/alumnijourney/apiserver/internal/mq"
	"github.com/alumnijourney/apiserver/internal/services"
	"github.com/alumnijourney/apiserver/internal/storage"
	"github.com/alumnijourney/apiserver/internal/store"
	"github.com/alumnijourney/apiserver/internal/tokens"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Users       *services.UserService
	Posts       *services.PostService
	Comments    *services.CommentService
	Logger      *logrus.Logger
	CORSOrigins []string
}

// NewRouter builds the full API router with middleware.
func NewRouter(d Deps) *chi.Mux {
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: d.Logger, NoColor: true}),
		middleware.Recoverer,
		middleware.StripSlashes,
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		monitoring.InstrumentHandler,
		middleware.Timeout(60*time.Second),
		handlers.Authenticate(d.Users, d.Logger),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, d.Users, d.Logger)
	})
	router.Route("/api/posts", func(r chi.Router) {
		handlers.PostRouter(r, d.Posts, d.Comments, d.Logger)
	})
	return router
}

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	queue      *mq.MQ
	log        *logrus.Logger
	cancel     context.CancelFunc
}

// New connects to every configured backend and wires the services.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.New(cfg.Log)

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	var avatars services.AvatarStore
	if objects != nil {
		avatars = objects
	} else {
		log.Info("object storage disabled; avatar endpoints will return 503")
	}

	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init mq: %w", err)
	}
	var publisher events.Publisher = events.Nop{}
	if queue != nil {
		publisher = events.NewMQPublisher(queue, cfg.MQ.Channel)
	}

	userRepo := store.NewUserRepository(dbConn)
	tokenRepo := store.NewTokenRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)

	opts := []services.Option{services.WithEvents(publisher), services.WithLogger(log)}
	userService := services.NewUserService(userRepo, tokenRepo, tokens.NewSigner(cfg.Auth.JWTSecret), avatars, cfg.Auth.BcryptCost, opts...)
	postService := services.NewPostService(postRepo, commentRepo, opts...)
	commentService := services.NewCommentService(postRepo, commentRepo, opts...)

	router := NewRouter(Deps{
		Users:       userService,
		Posts:       postService,
		Comments:    commentService,
		Logger:      log,
		CORSOrigins: cfg.CORS.AllowedOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 65 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
		db:     dbConn,
		queue:  queue,
		log:    log,
	}

	// The in-memory broker only reaches subscribers in this process.
	if queue != nil && cfg.MQ.Backend == "memory" {
		consumeCtx, cancel := context.WithCancel(context.Background())
		srv.cancel = cancel
		go func() {
			if err := events.Consume(consumeCtx, queue, cfg.MQ.Channel, log, events.LogHandler(log)); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("in-process event consumer stopped")
			}
		}()
	}

	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	if s.queue != nil {
		if qerr := s.queue.Close(); qerr != nil {
			s.log.WithError(qerr).Warn("close mq failed")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
