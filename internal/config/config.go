package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Referral ReferralPolicy
	Jobs     JobsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret    string
	ServiceToken string
	LogLevel     string
	LogPretty    bool
}

// ReferralPolicy holds the abuse and reward limits of the referral engine
type ReferralPolicy struct {
	WeeklyInviteCap   int
	VelocityWindow    time.Duration
	DormantInviteTTL  time.Duration
	MonthlyRewardCap  int
	TermRewardCap     int
	EnforceTermCap    bool
	HandleMaxLength   int
	HandleMaxAttempts int
	Timezone          string
}

// JobsConfig holds background job settings
type JobsConfig struct {
	ExpiryReportInterval time.Duration
}

// DefaultReferralPolicy returns the production limits
func DefaultReferralPolicy() ReferralPolicy {
	return ReferralPolicy{
		WeeklyInviteCap:   10,
		VelocityWindow:    7 * 24 * time.Hour,
		DormantInviteTTL:  30 * 24 * time.Hour,
		MonthlyRewardCap:  5,
		TermRewardCap:     15,
		EnforceTermCap:    false,
		HandleMaxLength:   30,
		HandleMaxAttempts: 50,
		Timezone:          "UTC",
	}
}

// Location resolves the calendar timezone, falling back to UTC
func (p ReferralPolicy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config, err := LoadForCLI()
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.App.ServiceToken == "" {
		return nil, fmt.Errorf("INTERNAL_SERVICE_TOKEN is required")
	}

	return config, nil
}

// LoadForCLI loads configuration without requiring the HTTP secrets
func LoadForCLI() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	defaults := DefaultReferralPolicy()

	config := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "referral_engine"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		App: AppConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			ServiceToken: getEnv("INTERNAL_SERVICE_TOKEN", ""),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogPretty:    getEnvBool("LOG_PRETTY", false),
		},
		Referral: ReferralPolicy{
			WeeklyInviteCap:   getEnvInt("REFERRAL_WEEKLY_INVITE_CAP", defaults.WeeklyInviteCap),
			VelocityWindow:    getEnvDuration("REFERRAL_VELOCITY_WINDOW", defaults.VelocityWindow),
			DormantInviteTTL:  getEnvDuration("REFERRAL_DORMANT_INVITE_TTL", defaults.DormantInviteTTL),
			MonthlyRewardCap:  getEnvInt("REFERRAL_MONTHLY_REWARD_CAP", defaults.MonthlyRewardCap),
			TermRewardCap:     getEnvInt("REFERRAL_TERM_REWARD_CAP", defaults.TermRewardCap),
			EnforceTermCap:    getEnvBool("REFERRAL_ENFORCE_TERM_CAP", defaults.EnforceTermCap),
			HandleMaxLength:   getEnvInt("REFERRAL_HANDLE_MAX_LENGTH", defaults.HandleMaxLength),
			HandleMaxAttempts: getEnvInt("REFERRAL_HANDLE_MAX_ATTEMPTS", defaults.HandleMaxAttempts),
			Timezone:          getEnv("REFERRAL_TIMEZONE", defaults.Timezone),
		},
		Jobs: JobsConfig{
			ExpiryReportInterval: getEnvDuration("EXPIRY_REPORT_INTERVAL", time.Hour),
		},
	}

	if _, err := time.LoadLocation(config.Referral.Timezone); err != nil {
		return nil, fmt.Errorf("invalid REFERRAL_TIMEZONE %q: %w", config.Referral.Timezone, err)
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
