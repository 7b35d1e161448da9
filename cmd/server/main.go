package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/whobuiltmyroad/backend/internal/config"
	"github.com/whobuiltmyroad/backend/internal/database"
	"github.com/whobuiltmyroad/backend/internal/handlers"
	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/routes"
	"github.com/whobuiltmyroad/backend/internal/services"
	"github.com/whobuiltmyroad/backend/internal/store"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Connect to PostgreSQL (user accounts)
	log.Println("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL: ", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis (sessions, optional rate-limit backend)
	log.Println("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (roads and feedback)
	log.Println("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal("Failed to connect to MongoDB: ", err)
	}
	defer database.Disconnect()

	// Object storage
	var storage services.ObjectStorage
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cld, err := services.NewCloudinaryStorage(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			log.Fatal("Failed to initialize Cloudinary: ", err)
		}
		storage = cld
		log.Println("Cloudinary storage initialized")
	} else {
		log.Warn("Cloudinary credentials not found. Image uploads will not be available")
	}

	// Per-action-class rate limiter
	var limiter ratelimit.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = ratelimit.NewRedis(database.RedisClient, ratelimit.DefaultRules())
		log.Println("Rate limiting backed by Redis")
	} else {
		limiter = ratelimit.NewMemory(ratelimit.DefaultRules())
		log.Println("Rate limiting backed by process memory")
	}

	// Services
	st := store.NewMongo(database.DB)
	sessions := services.NewSessionService(database.RedisClient)
	moderation := services.NewModerationService(st, storage)
	submission := services.NewSubmissionService(moderation, limiter, storage, st, cfg)
	feedback := services.NewFeedbackService(st, limiter)
	mapview := services.NewMapService(st)
	places := services.NewPlacesService(cfg.NominatimURL)
	overpass := services.NewOverpassService(cfg.OverpassURL)

	if cfg.AdminAPIToken == "" {
		log.Warn("ADMIN_API_TOKEN not set. Moderation routes are disabled")
	}

	// Router
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity() {
			r.Use(mw)
		}
		log.Println("Production security enabled (security headers, per-IP flood guard)")
	} else {
		r.Use(middleware.SecurityHeaders)
	}

	// Health check (no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, routes.Deps{
		Auth:       handlers.NewAuthHandler(sessions, limiter),
		Roads:      handlers.NewRoadsHandler(submission, feedback, mapview, cfg),
		Admin:      handlers.NewAdminHandler(moderation, limiter),
		Search:     handlers.NewSearchHandler(places, limiter),
		OSM:        handlers.NewOSMHandler(overpass, st, limiter),
		Sessions:   sessions,
		Limiter:    limiter,
		AdminToken: cfg.AdminAPIToken,
	})

	log.Printf("Who Built My Road backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
