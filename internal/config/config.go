package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	mu      sync.RWMutex
	overlay = map[string]string{}
)

// Get returns the environment value for key, then the config file value,
// then fallback.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	mu.RLock()
	defer mu.RUnlock()
	if v, ok := overlay[key]; ok && v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Config is the resolved service configuration.
type Config struct {
	Port        string
	StoreDriver string
	DBPath      string
	DatabaseURL string
	RedisURL    string
	SeedPath    string
	CORSOrigins []string

	Extractor             string
	GeminiAPIKey          string
	GeminiModel           string
	GeminiBaseURL         string
	ExtractionTimeout     time.Duration
	ExtractionMaxAttempts int
	// CaptureIdleTTL closes capture sessions with no motion or frame traffic
	// for this long. Zero keeps them until the client closes them.
	CaptureIdleTTL time.Duration

	Locale         string
	DefaultCountry string
	AdminEmail     string
	TrialDays      int

	EventsBackend string
	AMQPURL       string
	MQTTBroker    string
}

// Load resolves the configuration and validates it for the server.
func Load() (*Config, error) {
	cfg, err := Resolve()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Resolve reads .env (if any), then the YAML file named by CONFIG_FILE (if any),
// and resolves every key without validating it. Environment variables always
// win over the file.
func Resolve() (*Config, error) {
	_ = godotenv.Load()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Port:        Get("PORT", "8080"),
		StoreDriver: strings.ToLower(Get("STORE_DRIVER", "sqlite")),
		DBPath:      Get("DB_PATH", "data/app.db"),
		DatabaseURL: Get("DATABASE_URL", ""),
		RedisURL:    Get("REDIS_URL", ""),
		SeedPath:    Get("SEED_PATH", "data/seeds/master_deliveries.json"),
		CORSOrigins: splitList(Get("CORS_ORIGINS", "*")),

		Extractor:             strings.ToLower(Get("EXTRACTOR", "gemini")),
		GeminiAPIKey:          Get("GEMINI_API_KEY", ""),
		GeminiModel:           Get("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiBaseURL:         Get("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		ExtractionTimeout:     GetDuration("EXTRACTION_TIMEOUT", 30*time.Second),
		ExtractionMaxAttempts: GetInt("EXTRACTION_MAX_ATTEMPTS", 1),
		CaptureIdleTTL:        GetDuration("CAPTURE_IDLE_TTL", 10*time.Minute),

		Locale:         Get("LOCALE", "pt-BR"),
		DefaultCountry: Get("DEFAULT_COUNTRY", "Brasil"),
		AdminEmail:     strings.ToLower(Get("ADMIN_EMAIL", "admin@logiflow.com")),
		TrialDays:      GetInt("TRIAL_DAYS", 7),

		EventsBackend: strings.ToLower(Get("EVENTS_BACKEND", "none")),
		AMQPURL:       Get("AMQP_URL", ""),
		MQTTBroker:    Get("MQTT_BROKER", ""),
	}
	return cfg, nil
}

// LoadFile merges a flat YAML map of KEY: value pairs into the overlay.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config file %q: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	mu.Lock()
	defer mu.Unlock()
	for k, v := range raw {
		overlay[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Extractor {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for EXTRACTOR=gemini")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown EXTRACTOR %q", c.Extractor)
	}

	switch c.EventsBackend {
	case "none":
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for EVENTS_BACKEND=amqp")
		}
	case "mqtt":
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for EVENTS_BACKEND=mqtt")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}

	if c.TrialDays < 0 {
		return fmt.Errorf("TRIAL_DAYS must not be negative")
	}
	if c.CaptureIdleTTL < 0 {
		return fmt.Errorf("CAPTURE_IDLE_TTL must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
