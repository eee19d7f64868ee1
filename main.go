package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/cgtfolio/backend/src/config"
	"github.com/username/cgtfolio/backend/src/database"
	"github.com/username/cgtfolio/backend/src/handlers"
	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/security"
	"github.com/username/cgtfolio/backend/src/services"
	"github.com/username/cgtfolio/backend/src/store"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("cgtfolio backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	// Previews expire on their own TTL; report entries live until a commit,
	// reversal or import flushes them.
	previewCache := cache.New(config.Cfg.PreviewTTL, 2*config.Cfg.PreviewTTL)
	reportCache := cache.New(cache.NoExpiration, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	st := store.New(database.DB)
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	matchingService := services.NewMatchingService(st, previewCache, reportCache, config.Cfg.PreviewTTL)
	forecastService := services.NewForecastService(st)
	reportService := services.NewReportService(st, reportCache, config.Cfg.FYStartMonth)
	importService := services.NewImportService(st, reportCache)

	userHandler := handlers.NewUserHandler(authService)
	matchingHandler := handlers.NewMatchingHandler(matchingService)
	forecastHandler := handlers.NewForecastHandler(forecastService)
	reportHandler := handlers.NewReportHandler(reportService)
	importHandler := handlers.NewImportHandler(importService)
	txHandler := handlers.NewTransactionHandler(st)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/register", userHandler.RegisterUserHandler)
	apiRouter.HandleFunc("POST /api/auth/login", userHandler.LoginUserHandler)
	apiRouter.HandleFunc("POST /api/auth/logout", userHandler.AuthMiddleware(userHandler.LogoutUserHandler))

	apiRouter.HandleFunc("POST /api/import", userHandler.AuthMiddleware(importHandler.HandleImport))
	apiRouter.HandleFunc("GET /api/securities", userHandler.AuthMiddleware(txHandler.HandleGetSecurities))
	apiRouter.HandleFunc("GET /api/transactions", userHandler.AuthMiddleware(txHandler.HandleGetTransactions))
	apiRouter.HandleFunc("GET /api/parcels", userHandler.AuthMiddleware(txHandler.HandleGetParcels))
	apiRouter.HandleFunc("GET /api/matches", userHandler.AuthMiddleware(txHandler.HandleGetMatches))

	apiRouter.HandleFunc("POST /api/match/preview", userHandler.AuthMiddleware(matchingHandler.HandlePreview))
	apiRouter.HandleFunc("POST /api/match/commit", userHandler.AuthMiddleware(matchingHandler.HandleCommit))
	apiRouter.HandleFunc("POST /api/match/unmatch", userHandler.AuthMiddleware(matchingHandler.HandleUnmatch))

	apiRouter.HandleFunc("GET /api/forecast", userHandler.AuthMiddleware(forecastHandler.HandleForecast))
	apiRouter.HandleFunc("GET /api/reports/fy-summary", userHandler.AuthMiddleware(reportHandler.HandleFYSummary))
	apiRouter.HandleFunc("GET /api/reports/fy-years", userHandler.AuthMiddleware(reportHandler.HandleAvailableFYs))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "cgtfolio backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
