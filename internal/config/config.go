package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mediavault/tubefetch/internal/models"
)

// Config aggregates runtime configuration for the bot and supporting services.
// It is built once at startup and passed into constructors by value.
type Config struct {
	BotToken string
	MySQLDSN string

	// AdminUserIDs is the trusted operator set: these users bypass the
	// registration gate and debit checks and may decide topup requests.
	AdminUserIDs map[int64]bool
	AdminContact string

	RequiredChannel   string
	RequiredChannelID int64

	WelcomeBonusTokens int
	DailyBonusTokens   int

	// Packages is the topup price table, smallest first.
	Packages []models.TokenPackage

	DownloadDir     string
	CookiesFile     string
	FetchTimeout    time.Duration
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration

	// DirectSizeLimit is the largest artifact delivered over the direct
	// channel; bigger artifacts fall back to storage.
	DirectSizeLimit int64

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string
	AdminActorID    int64

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AdminUserIDs:       parseAdminIDs(os.Getenv("ADMIN_USER_IDS")),
		AdminContact:       getEnv("ADMIN_CONTACT", "@admin"),
		RequiredChannel:    normalizeChannelUsername(getEnv("REQUIRED_CHANNEL", "")),
		RequiredChannelID:  getInt64("REQUIRED_CHANNEL_ID", 0),
		WelcomeBonusTokens: getInt("WELCOME_BONUS_TOKENS", 10),
		DailyBonusTokens:   getInt("DAILY_BONUS_TOKENS", 10),
		DownloadDir:        getEnv("DOWNLOAD_DIR", filepath.Join(os.TempDir(), "tubefetch")),
		CookiesFile:        getEnv("COOKIES_FILE", ""),
		FetchTimeout:       time.Second * time.Duration(getInt("FETCH_TIMEOUT_SECONDS", 60)),
		DownloadTimeout:    time.Second * time.Duration(getInt("DOWNLOAD_TIMEOUT_SECONDS", 1800)),
		UploadTimeout:      time.Second * time.Duration(getInt("UPLOAD_TIMEOUT_SECONDS", 900)),
		DirectSizeLimit:    getInt64("DIRECT_SIZE_LIMIT_MB", 500) * 1024 * 1024,
		AdminListenAddr:    getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", "change-me"),
		AdminActorID:       getInt64("ADMIN_ACTOR_ID", 0),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           os.Getenv("S3_REGION"),
		S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:    os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:     getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:           getEnv("S3_PREFIX", "downloads"),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")

	cfg.Packages = []models.TokenPackage{
		{ID: "1", Tokens: 1, PriceMinorUnits: getInt("TOKEN_PRICE_1", 5000)},
		{ID: "5", Tokens: 5, PriceMinorUnits: getInt("TOKEN_PRICE_5", 20000)},
		{ID: "10", Tokens: 10, PriceMinorUnits: getInt("TOKEN_PRICE_10", 35000)},
		{ID: "25", Tokens: 25, PriceMinorUnits: getInt("TOKEN_PRICE_25", 75000)},
	}

	if cfg.AdminActorID == 0 && len(cfg.AdminUserIDs) > 0 {
		// The admin HTTP API acts as the lowest configured operator id
		// unless one is set explicitly.
		for id := range cfg.AdminUserIDs {
			if cfg.AdminActorID == 0 || id < cfg.AdminActorID {
				cfg.AdminActorID = id
			}
		}
	}

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.RequiredChannel == "" && cfg.RequiredChannelID == 0 {
		missing = append(missing, "REQUIRED_CHANNEL")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// IsAdmin reports whether the telegram user belongs to the trusted set.
func (c Config) IsAdmin(telegramID int64) bool {
	return c.AdminUserIDs[telegramID]
}

// PackageByID returns the configured package or nil for unknown ids.
func (c Config) PackageByID(id string) *models.TokenPackage {
	for i := range c.Packages {
		if c.Packages[i].ID == id {
			return &c.Packages[i]
		}
	}
	return nil
}

func parseAdminIDs(raw string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids[id] = true
	}
	return ids
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

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Running purely from real environment variables is fine.
	return nil
}

func normalizeChannelUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "https://t.me/")
	username = strings.TrimPrefix(username, "t.me/")
	username = strings.TrimPrefix(username, "@")
	return strings.TrimSuffix(username, "/")
}
