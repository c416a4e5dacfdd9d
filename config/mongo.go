package config

import (
	"fmt"
	"net/url"
	"time"
)

// MongoConfig describes how to reach MongoDB. AdminUser/AdminPassword are
// the root credentials the container was initialised with and are only
// needed by the bootstrap.
type MongoConfig struct {
	URI           string        `mapstructure:"uri"` // takes precedence over host/port when set
	Host          string        `mapstructure:"host" validate:"required"`
	Port          int           `mapstructure:"port" validate:"gt=0"`
	Database      string        `mapstructure:"database" validate:"required"`
	AuthSource    string        `mapstructure:"auth_source"`
	AdminUser     string        `mapstructure:"admin_user"`
	AdminPassword string        `mapstructure:"admin_password"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ConnectionURI builds the connection string for the given credentials.
// Empty credentials produce an unauthenticated URI.
func (cfg *MongoConfig) ConnectionURI(user, password string) string {
	if cfg.URI != "" {
		return cfg.URI
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/",
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
		if cfg.AuthSource != "" {
			q := u.Query()
			q.Set("authSource", cfg.AuthSource)
			u.RawQuery = q.Encode()
		}
	}
	return u.String()
}
