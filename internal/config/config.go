package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	MongoURI    string
	MongoDBName string
	PostgresURI string
	RedisURI    string

	AdminAPIToken string // static bearer token for the admin trust tier

	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	// Image upload constraints
	MaxImageSizeMB    int
	AllowedImageTypes []string

	// RemoderateOnEdit reverts an approved road to pending when it is edited.
	// Defaults to false: edits apply in place and status is untouched.
	RemoderateOnEdit bool

	// RateLimitBackend selects the per-action-class limiter store: "memory" or "redis".
	RateLimitBackend string

	NominatimURL string
	OverpassURL  string
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseList(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		frontend := strings.TrimSpace(getEnv("FRONTEND_URL", "http://localhost:3000"))
		if frontend != "" {
			allowedOrigins = append(allowedOrigins, frontend)
		}
	}

	imageTypes := parseList(getEnv("ALLOWED_IMAGE_TYPES", "image/jpeg,image/jpg,image/png,image/webp"))

	return &Config{
		MongoURI:    getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/whobuiltmyroad")),
		MongoDBName: getEnv("MONGODB_DB_NAME", "whobuiltmyroad_db"),
		PostgresURI: getEnv("POSTGRES_URI", "postgres://localhost:5432/whobuiltmyroad?sslmode=disable"),
		RedisURI:    getEnv("REDIS_URI", "redis://localhost:6379/0"),

		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),

		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		AllowedOrigins: allowedOrigins,

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "roads"),

		MaxImageSizeMB:    getEnvInt("MAX_IMAGE_SIZE_MB", 10),
		AllowedImageTypes: imageTypes,

		RemoderateOnEdit: getEnvBool("REMODERATE_ON_EDIT", false),

		RateLimitBackend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),

		NominatimURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		OverpassURL:  getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
	}
}

// MaxImageSizeBytes is the upload cap in bytes.
func (c *Config) MaxImageSizeBytes() int64 {
	return int64(c.MaxImageSizeMB) * 1024 * 1024
}

// ImageTypeAllowed reports whether mimeType is in the configured allow-list.
func (c *Config) ImageTypeAllowed(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, t := range c.AllowedImageTypes {
		if strings.ToLower(strings.TrimSpace(t)) == mimeType {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
