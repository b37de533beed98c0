package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the HTTP service and its providers.
type Config struct {
	HTTPListenAddr   string
	HTTPWriteTimeout time.Duration
	LogLevel         string
	PublicBaseURL    string
	StaticDir        string
	MySQLDSN         string

	AuthJWTSecret         string
	AuthJWTAudience       string
	ProfileLookupAttempts int
	ProfileLookupDelay    time.Duration

	KIEAPIKey          string
	KIEBaseURL         string
	KIEVideoModel      string
	VideoPollInterval  time.Duration
	VideoPollAttempts  int
	VideoDuration      int
	VideoAspectRatio   string
	RequestTimeout     time.Duration
	MaxUploadBytes     int64
	ProxyAllowedHosts  []string
	GeminiAPIKey       string
	GeminiModel        string
	GenerationCost     int
	StarterCredits     int
	ReferralBonus      int
	StripeSecretKey    string
	StripeWebhookKey   string
	StripeSuccessPath  string
	StripeCancelPath   string
	StripePriceStarter string
	StripePricePro     string
	PaymentCurrency    string
	AdminUsername      string
	AdminPassword      string
	S3Endpoint         string
	S3Region           string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3PublicBaseURL    string
	S3UsePathStyle     bool
	S3Prefix           string
}

// Load reads configuration from environment variables, applying sane defaults.
// Only the database DSN and the auth secret are mandatory; provider keys are
// reported as setup hints when a request needs them.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultKIEBaseURL = "https://api.kie.ai"

	cfg := Config{
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8080"),
		HTTPWriteTimeout:      time.Second * time.Duration(getInt("HTTP_WRITE_TIMEOUT_SECONDS", 330)),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StaticDir:             getEnv("STATIC_DIR", "web/dist"),
		AuthJWTAudience:       getEnv("AUTH_JWT_AUDIENCE", "authenticated"),
		ProfileLookupAttempts: getInt("PROFILE_LOOKUP_ATTEMPTS", 3),
		ProfileLookupDelay:    time.Millisecond * time.Duration(getInt("PROFILE_LOOKUP_DELAY_MS", 500)),
		KIEBaseURL:            normalizeKIEBaseURL(getEnv("KIE_BASE_URL", defaultKIEBaseURL), defaultKIEBaseURL),
		KIEVideoModel:         getEnv("KIE_VIDEO_MODEL", "kling/v2-1-standard"),
		VideoPollInterval:     time.Second * time.Duration(getInt("VIDEO_POLL_INTERVAL_SECONDS", 5)),
		VideoPollAttempts:     getInt("VIDEO_POLL_MAX_ATTEMPTS", 60),
		VideoDuration:         getInt("VIDEO_DURATION_SECONDS", 5),
		VideoAspectRatio:      getEnv("VIDEO_ASPECT_RATIO", "9:16"),
		RequestTimeout:        time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		MaxUploadBytes:        int64(getInt("MAX_UPLOAD_MB", 10)) << 20,
		ProxyAllowedHosts:     splitList(getEnv("PROXY_ALLOWED_HOSTS", "tempfile.aiquickdraw.com,file.aiquickdraw.com")),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GenerationCost:        getInt("GENERATION_CREDIT_COST", 1),
		StarterCredits:        getInt("STARTER_CREDITS", 0),
		ReferralBonus:         getInt("REFERRAL_BONUS_CREDITS", 3),
		StripeSuccessPath:     getEnv("STRIPE_SUCCESS_PATH", "/account?checkout=success"),
		StripeCancelPath:      getEnv("STRIPE_CANCEL_PATH", "/account?checkout=cancel"),
		PaymentCurrency:       strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         os.Getenv("ADMIN_PASSWORD"),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Region:              os.Getenv("S3_REGION"),
		S3AccessKey:           os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("S3_SECRET_KEY"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:       os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:        getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:              getEnv("S3_PREFIX", "pets"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.KIEAPIKey = os.Getenv("KIE_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookKey = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.StripePriceStarter = os.Getenv("STRIPE_PRICE_STARTER")
	cfg.StripePricePro = os.Getenv("STRIPE_PRICE_PRO")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}
	if cfg.GenerationCost <= 0 {
		return Config{}, fmt.Errorf("GENERATION_CREDIT_COST must be positive, got %d", cfg.GenerationCost)
	}
	if cfg.ReferralBonus <= 0 {
		return Config{}, fmt.Errorf("REFERRAL_BONUS_CREDITS must be positive, got %d", cfg.ReferralBonus)
	}
	if cfg.AdminPassword == "change-me" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD must not be the placeholder value")
	}
	if cfg.VideoPollAttempts <= 0 {
		cfg.VideoPollAttempts = 1
	}

	return cfg, nil
}

// VideoConfigured reports whether the video provider key is present.
func (c Config) VideoConfigured() bool { return c.KIEAPIKey != "" }

// PaymentsConfigured reports whether checkout sessions can be created.
func (c Config) PaymentsConfigured() bool { return c.StripeSecretKey != "" }

// WebhooksConfigured reports whether webhook signatures can be verified.
func (c Config) WebhooksConfigured() bool { return c.StripeWebhookKey != "" }

// AdminEnabled reports whether the /admin routes accept any credentials.
func (c Config) AdminEnabled() bool { return c.AdminPassword != "" }

// PromptEnhancerConfigured reports whether the prompt enhancement model is available.
func (c Config) PromptEnhancerConfigured() bool { return c.GeminiAPIKey != "" }

// StorageConfigured reports whether uploaded photos can be stored.
func (c Config) StorageConfigured() bool {
	return c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3Bucket != "" && c.S3PublicBaseURL != ""
}

// normalizeKIEBaseURL ensures we always hit the documented API host. The root
// kie.ai domain serves the marketing site and returns HTML.
func normalizeKIEBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	if parsed.Host == "kie.ai" {
		parsed.Host = "api.kie.ai"
	}

	return parsed.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads the first env file found. Running purely from the process
// environment is fine, so a missing file is not an error.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
