package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viralforge/suggestbox/internal/feed"
)

// Config is the resolved runtime configuration for the suggestion feed
// service. It merges file defaults and environment overrides to support
// both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// DatabaseURL and RedisURL select the backing store. Both empty means
	// the in-memory store: the binary stays runnable with zero services.
	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	TokenTTL   time.Duration
	MaxDBConns int32

	// App is the client-facing configuration handed to every feed session.
	// Its required-field check (APIKey) happens in the session bootstrap,
	// not here, so an invalid value surfaces as the fatal configuration
	// error the presentation layer renders.
	App feed.Config
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	App struct {
		APIKey        string `yaml:"api_key"`
		AuthDomain    string `yaml:"auth_domain"`
		ProjectID     string `yaml:"project_id"`
		StorageBucket string `yaml:"storage_bucket"`
		SenderID      string `yaml:"sender_id"`
		AppID         string `yaml:"app_id"`
	} `yaml:"app"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:         "suggestbox-feed",
		HTTPPort:          8080,
		GRPCPort:          9090,
		JWTKeyID:          "suggestbox-key-1",
		AllowEphemeralJWT: true,
		TokenTTL:          24 * time.Hour,
		MaxDBConns:        20,
		App: feed.Config{
			ProjectID: "suggestbox",
		},
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.App.APIKey != "" {
			cfg.App.APIKey = f.App.APIKey
		}
		if f.App.AuthDomain != "" {
			cfg.App.AuthDomain = f.App.AuthDomain
		}
		if f.App.ProjectID != "" {
			cfg.App.ProjectID = f.App.ProjectID
		}
		if f.App.StorageBucket != "" {
			cfg.App.StorageBucket = f.App.StorageBucket
		}
		if f.App.SenderID != "" {
			cfg.App.SenderID = f.App.SenderID
		}
		if f.App.AppID != "" {
			cfg.App.AppID = f.App.AppID
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.App.APIKey = envOrDefault("APP_API_KEY", cfg.App.APIKey)
	cfg.App.AuthDomain = envOrDefault("APP_AUTH_DOMAIN", cfg.App.AuthDomain)
	cfg.App.ProjectID = envOrDefault("APP_PROJECT_ID", cfg.App.ProjectID)
	cfg.App.StorageBucket = envOrDefault("APP_STORAGE_BUCKET", cfg.App.StorageBucket)
	cfg.App.SenderID = envOrDefault("APP_SENDER_ID", cfg.App.SenderID)
	cfg.App.AppID = envOrDefault("APP_ID", cfg.App.AppID)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_HOURS", int(cfg.TokenTTL.Hours()))) * time.Hour

	if cfg.DatabaseURL != "" && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL: change fan-out requires redis when postgres is configured")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
