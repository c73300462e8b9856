package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"assessment-system/internal/assessment"
	"assessment-system/internal/auth"
	"assessment-system/internal/config"
	"assessment-system/internal/leaderboard"
	"assessment-system/internal/profile"
	"assessment-system/pkg/cache"
	"assessment-system/pkg/database"
	"assessment-system/pkg/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireJWT(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.NewPostgresDB(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(cfg.RedisAddr)
	defer redisCache.Close()
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Printf("Warning: redis unavailable at %s, caching and sign-out checks degraded: %v", cfg.RedisAddr, err)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Initialize repositories
	authRepo := auth.NewRepository(db)
	profileRepo := profile.NewRepository(db)
	assessmentRepo := assessment.NewRepository(db)

	// Initialize services
	authService := auth.NewService(authRepo, redisCache, cfg.JWTSecret)
	profileService := profile.NewService(profileRepo)
	boardService := leaderboard.NewService(assessmentRepo, redisCache, cfg.LeaderboardTTL)
	assessmentService := assessment.NewService(assessmentRepo, redisCache, boardService, wsHub, assessment.Options{
		AdvanceDelay: cfg.AdvanceDelay,
		Retention:    cfg.AttemptRetention,
	})
	wsHub.SetAuthorizer(assessmentService)

	// Initialize handlers
	authHandler := auth.NewHandler(authService)
	profileHandler := profile.NewHandler(profileService)
	boardHandler := leaderboard.NewHandler(boardService)
	assessmentHandler := assessment.NewHandler(assessmentService)

	router := mux.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// Auth routes - no JWT required
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	jwt := auth.JWTMiddleware(authService, profileService)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(jwt)
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	apiRouter.HandleFunc("/profile", profileHandler.GetProfile).Methods("GET")
	apiRouter.HandleFunc("/profile", profileHandler.UpdateProfile).Methods("PUT")
	apiRouter.HandleFunc("/subjects", boardHandler.GetSubjects).Methods("GET")

	// Attempts and the leaderboard need a completed profile.
	gated := apiRouter.NewRoute().Subrouter()
	gated.Use(auth.RequireProfile)
	gated.HandleFunc("/leaderboard", boardHandler.GetLeaderboard).Methods("GET")
	assessmentHandler.Routes(apiRouter, gated)

	// WebSocket endpoint; browsers pass the token as ?token=
	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(jwt)
	wsRouter.HandleFunc("/attempts/{id}", wsHub.HandleWebSocket)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Printf("Server shutdown gracefully (%d attempts in memory)", assessmentService.Active())
}
