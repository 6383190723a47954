// Package config loads server and agent settings from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server holds the HTTP service configuration.
type Server struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	DBPath         string        `mapstructure:"db_path"`
	Port           string        `mapstructure:"port"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	AllowedOrigins []string      `mapstructure:"-"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
}

// Agent holds the metrics sampler configuration. Reporting to the server is
// enabled only when both AgentID and AgentToken are set.
type Agent struct {
	SiteID          string        `mapstructure:"site_id"`
	LogDir          string        `mapstructure:"log_dir"`
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	APIURL          string        `mapstructure:"api_url"`
	AgentID         string        `mapstructure:"agent_id"`
	AgentToken      string        `mapstructure:"agent_token"`
}

// ReportingEnabled reports whether samples should be posted to the server.
func (a Agent) ReportingEnabled() bool {
	return a.AgentID != "" && a.AgentToken != ""
}

func newViper(defaults map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Keys are the lower-case form of the environment variable names.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadServer reads the server configuration and applies defaults. It returns
// an error when JWT_SECRET is absent or a value does not parse.
func LoadServer() (*Server, error) {
	v := newViper(map[string]any{
		"jwt_secret":      "",
		"db_path":         "./sitewatch.db",
		"port":            "8080",
		"token_ttl":       "1h",
		"allowed_origins": "*",
		"cookie_secure":   false,
	})

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}
	cfg.AllowedOrigins = splitList(v.GetString("allowed_origins"))
	return &cfg, nil
}

// LoadAgent reads the agent configuration and applies defaults.
func LoadAgent() (*Agent, error) {
	v := newViper(map[string]any{
		"site_id":          "default",
		"log_dir":          "/app/logs",
		"scan_interval":    "5m",
		"metrics_interval": "1m",
		"api_url":          "http://localhost:8080",
		"agent_id":         "",
		"agent_token":      "",
	})

	var cfg Agent
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ScanInterval <= 0 || cfg.MetricsInterval <= 0 {
		return nil, fmt.Errorf("SCAN_INTERVAL and METRICS_INTERVAL must be positive")
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
