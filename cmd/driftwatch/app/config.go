package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/driftwatch/driftwatch/pkg/constants"
)

// Config holds the application configuration loaded from command-line
// flags, environment variables, .env files, and the optional
// ~/.driftwatch.yaml config file, in that order of precedence.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Config file
	ConfigFile string

	// Source marketplace
	MarketURL    string
	MarketGrades []string

	// Operator storefront Admin API
	ShopURL       string
	ShopToken     string
	PremiumMarker string

	// Chat platform
	BotToken        string
	PublicKey       string
	PriceChannelID  string
	BundleChannelID string
	AdminID         string
	ReviewerRoles   []string

	// Webhook listener
	Host string
	Port int

	// State storage
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OverridesPath string

	// Reconciliation tuning
	CheckInterval     time.Duration
	SuppressionWindow time.Duration
	Undercut          float64
	RaiseThreshold    float64
	PriceFloor        float64

	// Logging configuration. LogLevel carries only the explicit
	// --log-level flag; the LOG_LEVEL env var is consulted separately so
	// -v and -q can sit between them in precedence.
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (applied later by cobra via UpdateFromFlags)
//  2. Environment variables
//  3. .env files
//  4. Config file (~/.driftwatch.yaml)
//  5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files before Viper env binding sees the environment.
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Try to read a config file if one exists.
	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".driftwatch")
		}
	}

	// A missing config file is fine; env and defaults carry it.
	_ = viper.ReadInConfig()

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),

		ConfigFile: viper.ConfigFileUsed(),

		MarketURL:    viper.GetString("market_url"),
		MarketGrades: viper.GetStringSlice("market_grades"),

		ShopURL:       viper.GetString("shop_url"),
		ShopToken:     viper.GetString("shop_token"),
		PremiumMarker: viper.GetString("premium_marker"),

		BotToken:        viper.GetString("bot_token"),
		PublicKey:       viper.GetString("public_key"),
		PriceChannelID:  viper.GetString("price_channel_id"),
		BundleChannelID: viper.GetString("bundle_channel_id"),
		AdminID:         viper.GetString("admin_id"),
		ReviewerRoles:   viper.GetStringSlice("reviewer_roles"),

		Host: viper.GetString("host"),
		Port: viper.GetInt("port"),

		DataDir:       viper.GetString("data_dir"),
		RedisAddr:     viper.GetString("redis_addr"),
		RedisPassword: viper.GetString("redis_password"),
		RedisDB:       viper.GetInt("redis_db"),
		OverridesPath: viper.GetString("overrides_path"),

		CheckInterval:     viper.GetDuration("check_interval"),
		SuppressionWindow: viper.GetDuration("suppression_window"),
		Undercut:          viper.GetFloat64("undercut"),
		RaiseThreshold:    viper.GetFloat64("raise_threshold"),
		PriceFloor:        viper.GetFloat64("price_floor"),

		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	// Set defaults
	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.DataDir == "" {
		config.DataDir = "data"
	}
	if config.CheckInterval == 0 {
		config.CheckInterval = constants.DefaultCheckInterval
	}
	if config.SuppressionWindow == 0 {
		config.SuppressionWindow = constants.DefaultSuppressionWindow
	}
	if config.Undercut == 0 {
		config.Undercut = constants.DefaultUndercutFraction
	}
	if config.RaiseThreshold == 0 {
		config.RaiseThreshold = constants.DefaultRaiseThreshold
	}
	if config.PriceFloor == 0 {
		config.PriceFloor = constants.DefaultPriceFloor
	}
	if config.PremiumMarker == "" {
		config.PremiumMarker = constants.DefaultPremiumMarker
	}

	return config, nil
}

// UpdateFromFlags updates config values from parsed command flags. This
// is called after cobra parses flags so flag values take precedence over
// config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	envFiles := []string{
		".env",
		".env.local",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
