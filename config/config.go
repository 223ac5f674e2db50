package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TelegramToken     string
	OwnerTelegramID   int64
	PartnerTelegramID int64
	DatabasePath      string
	Timezone          *time.Location
	MorningTime       string
	WebhookURL        string
	ServerPort        string

	APIUsername string
	APIPassword string

	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string

	HolidayAPIKey      string
	HolidayAPIURL      string
	HolidayAPIFormat   string
	HolidayRefreshSpec string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	LogLevel    string
	Environment string
}

// Load reads the configuration from the environment. When PLANNER_CONFIG
// names a YAML file, its values (keyed by the same variable names) are used
// for anything the environment leaves unset.
func Load() (*Config, error) {
	file, err := readFile(os.Getenv("PLANNER_CONFIG"))
	if err != nil {
		return nil, err
	}
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v := strings.TrimSpace(file[key]); v != "" {
			return v
		}
		return def
	}

	token := get("TELEGRAM_BOT_TOKEN", "")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	ownerID, err := strconv.ParseInt(get("OWNER_TELEGRAM_ID", ""), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("OWNER_TELEGRAM_ID is required and must be a number")
	}

	var partnerID int64
	if p := get("PARTNER_TELEGRAM_ID", ""); p != "" {
		partnerID, err = strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("PARTNER_TELEGRAM_ID must be a number")
		}
	}

	tz, err := time.LoadLocation(get("TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		TelegramToken:     token,
		OwnerTelegramID:   ownerID,
		PartnerTelegramID: partnerID,
		DatabasePath:      get("DATABASE_PATH", "./data/planner.db"),
		Timezone:          tz,
		MorningTime:       get("MORNING_TIME", "08:00"),
		WebhookURL:        strings.TrimRight(get("WEBHOOK_URL", ""), "/"),
		ServerPort:        get("SERVER_PORT", "8080"),

		APIUsername: get("API_USERNAME", ""),
		APIPassword: get("API_PASSWORD", ""),

		SupabaseURL:   get("SUPABASE_URL", ""),
		SupabaseKey:   get("SUPABASE_KEY", ""),
		SupabaseTable: get("SUPABASE_TABLE", "schedules"),

		HolidayAPIKey:      get("PUBLIC_DATA_API_KEY", ""),
		HolidayAPIURL:      get("PUBLIC_DATA_API_URL", "https://apis.data.go.kr/B090041/openapi/service/SpcdeInfoService/getRestDeInfo"),
		HolidayAPIFormat:   strings.ToLower(get("PUBLIC_DATA_API_FORMAT", "xml")),
		HolidayRefreshSpec: get("HOLIDAY_REFRESH_SPEC", "30 4 * * *"),

		CalDAVURL:      get("CALDAV_URL", ""),
		CalDAVUsername: get("CALDAV_USERNAME", ""),
		CalDAVPassword: get("CALDAV_PASSWORD", ""),
		CalDAVCalendar: get("CALDAV_CALENDAR", ""),

		LogLevel:    strings.ToLower(get("LOG_LEVEL", "info")),
		Environment: strings.ToLower(get("ENVIRONMENT", "development")),
	}

	if cfg.HolidayAPIFormat != "xml" && cfg.HolidayAPIFormat != "json" {
		return nil, fmt.Errorf("PUBLIC_DATA_API_FORMAT must be xml or json")
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_KEY is required when SUPABASE_URL is set")
	}

	return cfg, nil
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return values, nil
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID || (c.PartnerTelegramID != 0 && telegramID == c.PartnerTelegramID)
}

// UseSupabase reports whether schedules live in the hosted database
func (c *Config) UseSupabase() bool {
	return c.SupabaseURL != ""
}

// APIEnabled reports whether the REST API has credentials
func (c *Config) APIEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

// UseWebhook reports whether updates arrive by webhook instead of polling
func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

// NewLogger builds the process logger: JSON in production, console otherwise
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	if c.Environment == "production" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
