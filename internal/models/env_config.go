package models

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPort           = "8000"
	DefaultPostsPerMinute = 2
	DefaultMaxTags        = 3
)

type EnvConfig struct {
	DatabaseURL    string
	Port           string
	Debug          bool
	SecretKey      []byte
	PostsPerMinute int
	MaxTags        int
	SiteDomain     string
	MediaDir       string
	MigrationsDir  string
	SMTPAddr       string
	SMTPUser       string
	SMTPPassword   string
	MailFrom       string
}

// ReadEnvConfig loads an optional .env file and then reads HASKER_* variables.
// Variables already present in the process environment are never overridden.
func ReadEnvConfig() EnvConfig {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, reading from environment")
	}
	return envConfigFromLookup(os.Getenv)
}

func envConfigFromLookup(getenv func(string) string) EnvConfig {
	get := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}
	getInt := func(key string, fallback int) int {
		raw := getenv(key)
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Warn().Str("key", key).Str("value", raw).Msgf("Using default value %d", fallback)
			return fallback
		}
		return n
	}

	return EnvConfig{
		DatabaseURL:    getenv("HASKER_DATABASE_URL"),
		Port:           get("HASKER_PORT", DefaultPort),
		Debug:          getenv("HASKER_DEBUG") == "true",
		SecretKey:      []byte(getenv("HASKER_SECRET_KEY")),
		PostsPerMinute: getInt("HASKER_POSTS_PER_MINUTE", DefaultPostsPerMinute),
		MaxTags:        getInt("HASKER_MAX_TAGS", DefaultMaxTags),
		SiteDomain:     get("HASKER_SITE_DOMAIN", "localhost:"+DefaultPort),
		MediaDir:       get("HASKER_MEDIA_DIR", "media"),
		MigrationsDir:  get("HASKER_MIGRATIONS_DIR", "migrations"),
		SMTPAddr:       getenv("HASKER_SMTP_ADDR"),
		SMTPUser:       getenv("HASKER_SMTP_USER"),
		SMTPPassword:   getenv("HASKER_SMTP_PASSWORD"),
		MailFrom:       get("HASKER_MAIL_FROM", "noreply@hasker"),
	}
}

func (c EnvConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("HASKER_DATABASE_URL is not set")
	}
	if len(c.SecretKey) == 0 && !c.Debug {
		return errors.New("HASKER_SECRET_KEY is not set")
	}
	return nil
}
