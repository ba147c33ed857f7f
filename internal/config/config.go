// ABOUTME: Configuration loading and parsing for hearth-tenant
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hearth-tenant configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sessions SessionsConfig `yaml:"sessions"`
	Tenant   TenantConfig   `yaml:"tenant"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionsConfig holds the on-disk session store configuration
type SessionsConfig struct {
	Dir string `yaml:"dir"`
}

// TenantConfig controls multi-tenant mode, migration, and the accounts
// seeded on a fresh install.
type TenantConfig struct {
	Enabled             bool   `yaml:"enabled"`
	AutoMigration       bool   `yaml:"auto_migration"`
	DefaultTenantName   string `yaml:"default_tenant_name"`
	DefaultTenantDomain string `yaml:"default_tenant_domain"`
	MakeFirstUserAdmin  bool   `yaml:"make_first_user_admin"`

	SuperAdmin SeedAccountConfig `yaml:"super_admin"`
	Admin      SeedAccountConfig `yaml:"admin"`
	User       SeedAccountConfig `yaml:"user"`
}

// SeedAccountConfig describes one account created on fresh installs. An empty
// username disables the account.
type SeedAccountConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// AuthConfig holds authentication enforcement configuration
type AuthConfig struct {
	PasswordMinLength int    `yaml:"password_min_length"`
	MaxFailedLogins   int    `yaml:"max_failed_logins"`
	SSOSecret         string `yaml:"sso_secret"`

	LockoutDuration  time.Duration `yaml:"-"`
	SessionTimeout   time.Duration `yaml:"-"`
	InvitationExpiry time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LockoutDurationRaw  string `yaml:"lockout_duration"`
	SessionTimeoutRaw   string `yaml:"session_timeout"`
	InvitationExpiryRaw string `yaml:"invitation_expiry"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the stock settings. Load overlays the YAML
// file on top of these.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "hearth.db"},
		Sessions: SessionsConfig{Dir: ".hearth_sessions"},
		Tenant: TenantConfig{
			Enabled:            true,
			AutoMigration:      true,
			DefaultTenantName:  "Default Organization",
			MakeFirstUserAdmin: true,
		},
		Auth: AuthConfig{
			PasswordMinLength: 8,
			MaxFailedLogins:   5,
			LockoutDuration:   15 * time.Minute,
			SessionTimeout:    24 * time.Hour,
			InvitationExpiry:  7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Sessions.Dir == "" {
		return fmt.Errorf("sessions.dir is required")
	}

	if c.Auth.PasswordMinLength < 4 {
		return fmt.Errorf("auth.password_min_length must be at least 4, got %d", c.Auth.PasswordMinLength)
	}
	if c.Auth.MaxFailedLogins < 0 {
		return fmt.Errorf("auth.max_failed_logins cannot be negative, got %d", c.Auth.MaxFailedLogins)
	}
	if c.Auth.SessionTimeout < time.Hour {
		return fmt.Errorf("auth.session_timeout must be at least 1h, got %s", c.Auth.SessionTimeout)
	}
	if c.Auth.InvitationExpiry < 24*time.Hour {
		return fmt.Errorf("auth.invitation_expiry must be at least 24h, got %s", c.Auth.InvitationExpiry)
	}

	if c.Tenant.Enabled {
		if c.Tenant.DefaultTenantName == "" {
			return fmt.Errorf("tenant.default_tenant_name is required when tenant mode is enabled")
		}

		// Seed accounts go through the same password policy as every other
		// account creation path.
		seeds := []struct {
			key  string
			acct SeedAccountConfig
		}{
			{"super_admin", c.Tenant.SuperAdmin},
			{"admin", c.Tenant.Admin},
			{"user", c.Tenant.User},
		}
		for _, seed := range seeds {
			if seed.acct.Username != "" && len(seed.acct.Password) < c.Auth.PasswordMinLength {
				return fmt.Errorf("tenant.%s.password must be at least %d characters", seed.key, c.Auth.PasswordMinLength)
			}
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.LockoutDurationRaw != "" {
		cfg.Auth.LockoutDuration, err = time.ParseDuration(cfg.Auth.LockoutDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing lockout_duration %q: %w", cfg.Auth.LockoutDurationRaw, err)
		}
	}

	if cfg.Auth.SessionTimeoutRaw != "" {
		cfg.Auth.SessionTimeout, err = time.ParseDuration(cfg.Auth.SessionTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing session_timeout %q: %w", cfg.Auth.SessionTimeoutRaw, err)
		}
	}

	if cfg.Auth.InvitationExpiryRaw != "" {
		cfg.Auth.InvitationExpiry, err = time.ParseDuration(cfg.Auth.InvitationExpiryRaw)
		if err != nil {
			return fmt.Errorf("parsing invitation_expiry %q: %w", cfg.Auth.InvitationExpiryRaw, err)
		}
	}

	return nil
}
