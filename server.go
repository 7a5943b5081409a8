package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/urfave/cli/v2"

	"github.com/user/accountd/apperror"
	"github.com/user/accountd/auth"
	"github.com/user/accountd/avatars"
	"github.com/user/accountd/background"
	"github.com/user/accountd/config"
	"github.com/user/accountd/db"
	_ "github.com/user/accountd/docs" // registers the Swagger document
	"github.com/user/accountd/logging"
	"github.com/user/accountd/repository"
	"github.com/user/accountd/users"
)

const (
	shutdownTimeout = 30 * time.Second
	requestTimeout  = 60 * time.Second
	uploadsPrefix   = "/uploads"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"CONFIG_PATH"}},
			&cli.BoolFlag{Name: "skip-migrations", Usage: "do not apply pending migrations on startup"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !c.Bool("skip-migrations") {
		if err := migrateUp(cfg.Database.URL, log); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	accessLogRepo := repository.NewAccessLogRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth)
	authService := auth.NewService(userRepo, accessLogRepo, auth.NewBcryptHasher(auth.BcryptCost), tokens, log)

	store, uploadDir, err := newAvatarStore(ctx, cfg.Avatar)
	if err != nil {
		return err
	}
	uploader := avatars.NewUploader(store, cfg.Avatar.MaxBytes)
	userService := users.NewService(userRepo, accessLogRepo, uploader,
		users.HistoryLimits{Default: cfg.AccessLog.HistoryDefaultLimit, Max: cfg.AccessLog.HistoryMaxLimit},
		log)

	retention := background.NewRetentionJob(accessLogRepo, cfg.AccessLog.Retention, cfg.AccessLog.PruneSchedule, log)
	if err := retention.Start(); err != nil {
		return err
	}

	router := newRouter(routerDeps{
		log:       log,
		server:    cfg.Server,
		tokens:    tokens,
		auth:      auth.NewHandlers(authService, log),
		users:     users.NewHandlers(userService, uploader.MaxBytes(), log),
		uploadDir: uploadDir,
		health:    pool,
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := retention.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("retention job did not stop cleanly")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}

// newAvatarStore returns the configured store and, for the disk backend, the
// directory to serve under /uploads.
func newAvatarStore(ctx context.Context, cfg config.AvatarConfig) (avatars.Store, string, error) {
	if cfg.Storage == config.AvatarStorageS3 {
		store, err := avatars.NewS3StoreFromConfig(ctx, cfg)
		if err != nil {
			return nil, "", apperror.NewConfigError("failed to configure s3 avatar storage", err)
		}
		return store, "", nil
	}
	disk := avatars.NewDiskStore(cfg.UploadDir, uploadsPrefix)
	return disk, disk.Root(), nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	log       logrus.FieldLogger
	server    config.ServerConfig
	tokens    auth.TokenVerifier
	auth      *auth.Handlers
	users     *users.Handlers
	uploadDir string
	health    pinger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.log))
	r.Use(recoverer(d.log))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Cache-Control"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperror.WriteError(w, r, d.log, apperror.NewNotFoundError("not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperror.WriteJSON(w, http.StatusMethodNotAllowed, apperror.ErrorResponse{Error: "method not allowed"})
	})

	r.Get("/healthz", healthHandler(d.health, d.log))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if d.uploadDir != "" {
		r.Handle(uploadsPrefix+"/*", uploadsHandler(d.uploadDir))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", d.auth.HandleRegister())
		r.Post("/login", d.auth.HandleLogin())
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(auth.JWTMiddleware(d.tokens, d.log))

		r.Get("/", d.users.HandleGetMe())
		r.Patch("/", d.users.HandlePatchMe())
		r.Get("/access-history", d.users.HandleAccessHistory())
		r.Post("/avatar", d.users.HandleUploadAvatar())
	})

	return r
}

// recoverer turns a panic into a JSON 500.
func recoverer(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.WithFields(logrus.Fields{
						"request_id": middleware.GetReqID(r.Context()),
						"panic":      fmt.Sprintf("%v", rvr),
					}).Error("panic while serving request")
					apperror.WriteError(w, r, log, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(db pinger, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.WithError(err).Warn("health check failed")
			apperror.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		apperror.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// uploadsHandler serves stored avatars. Directory listings are not exposed.
func uploadsHandler(dir string) http.Handler {
	files := http.StripPrefix(uploadsPrefix+"/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
