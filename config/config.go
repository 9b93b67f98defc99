package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store holds what is needed to reach the stored documents and to hash
// passwords, which is all that offline user management needs.
type Store struct {
	MongoConnString string `env:"MONGODB_CONNSTRING"`
	MongoDBName     string `env:"MONGO_DB_NAME" envDefault:"conference-go"`
	LocalDBPath     string `env:"LOCAL_DB_PATH" envDefault:"./database/conferences.json"`
	PasswordPepper  string `env:"PASSWORD_PEPPER"`
}

type Config struct {
	Store
	SessionSecret string        `env:"SESSION_SECRET_KEY,required,notEmpty"`
	PexelsAPIKey  string        `env:"PEXELS_API_KEY"`
	PhotoCacheTTL time.Duration `env:"PHOTO_CACHE_TTL" envDefault:"24h"`
	ListenAddr    string        `env:"LISTEN_ADDR" envDefault:":80"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins   string        `env:"CORS_ORIGINS" envDefault:"http://localhost:3001"`
}

// Load reads the configuration from the environment. A missing session
// secret is an error: tokens cannot be signed without it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// LoadStore reads only the store and password settings.
func LoadStore() (*Store, error) {
	cfg := &Store{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// UsesMongo reports whether a MongoDB deployment is configured. Without one
// the service runs on the local JSON database.
func (c *Store) UsesMongo() bool {
	return c.MongoConnString != ""
}

func GetSecret(key string) (string, error) {
	val, exist := os.LookupEnv(key)
	if exist {
		return val, nil
	}
	return "", fmt.Errorf("no env variable with key %v", key)
}
